package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/jayteealao/distpush/internal/orchestrator"
)

// Reporter prints one line when a stage starts and one when it ends.
type Reporter struct {
	out io.Writer
}

// NewReporter creates a Reporter writing to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// OnStage renders ev. It is meant to be passed as DeployOptions.OnStage.
func (r *Reporter) OnStage(ev orchestrator.StageEvent) {
	prefix := StageStyle.Render(fmt.Sprintf("(%d)", ev.Stage.Number()))

	switch ev.Status {
	case orchestrator.StatusStarted:
		fmt.Fprintf(r.out, "%s %s\n", prefix, ev.Message)
	case orchestrator.StatusSucceeded:
		fmt.Fprintf(r.out, "%s %s\n", prefix,
			SuccessStyle.Render(fmt.Sprintf("%s %s succeeded (%s)", GetStatusIcon("succeeded"), ev.Stage, ev.Elapsed.Round(time.Millisecond))))
	case orchestrator.StatusFailed:
		fmt.Fprintf(r.out, "%s %s\n", prefix,
			ErrorStyle.Render(fmt.Sprintf("%s %s", GetStatusIcon("failed"), ev.Stage.Failure(ev.Err))))
	case orchestrator.StatusSkipped:
		fmt.Fprintf(r.out, "%s %s\n", prefix,
			SkippedStyle.Render(fmt.Sprintf("%s %s", GetStatusIcon("skipped"), ev.Message)))
	}
}

// Done prints the closing line for a run.
func (r *Reporter) Done(name string, err error) {
	if err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render(fmt.Sprintf("Deploy of %s failed", name)))
		return
	}
	fmt.Fprintln(r.out, SuccessStyle.Render(fmt.Sprintf("Deploy of %s succeeded", name)))
}
