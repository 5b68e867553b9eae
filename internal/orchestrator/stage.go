package orchestrator

import (
	"errors"
	"fmt"

	apperrors "github.com/jayteealao/distpush/internal/errors"
)

// Stage is one ordered step of a deploy.
type Stage int

// Stages run in declaration order; none repeats.
const (
	StageBuild Stage = iota + 1
	StageArchive
	StageConnect
	StageUpload
	StageLocalCleanup
	StageRemoteUnpack
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageBuild,
	StageArchive,
	StageConnect,
	StageUpload,
	StageLocalCleanup,
	StageRemoteUnpack,
}

var stageNames = map[Stage]string{
	StageBuild:        "build",
	StageArchive:      "archive",
	StageConnect:      "connect",
	StageUpload:       "upload",
	StageLocalCleanup: "local-cleanup",
	StageRemoteUnpack: "remote-unpack",
}

// Number returns the 1-based position shown to the operator.
func (s Stage) Number() int {
	return int(s)
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage is the inverse of Stage.String.
func ParseStage(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage: %q", name)
}

func (s Stage) sentinel() error {
	switch s {
	case StageBuild:
		return apperrors.ErrBuildFailed
	case StageArchive:
		return apperrors.ErrArchiveFailed
	case StageConnect:
		return apperrors.ErrConnectFailed
	case StageUpload:
		return apperrors.ErrUploadFailed
	case StageLocalCleanup:
		return apperrors.ErrLocalCleanupFailed
	case StageRemoteUnpack:
		return apperrors.ErrRemoteUnpackFailed
	default:
		return nil
	}
}

// Failure describes err as a failure of s. A cause that already wraps the
// stage's sentinel carries its own prefix and is printed unchanged.
func (s Stage) Failure(err error) string {
	if sentinel := s.sentinel(); sentinel != nil && errors.Is(err, sentinel) {
		return err.Error()
	}
	return fmt.Sprintf("%s failed: %v", s, err)
}

// StageStatus is the outcome of a stage as reported to callbacks.
type StageStatus string

const (
	StatusStarted   StageStatus = "started"
	StatusSucceeded StageStatus = "succeeded"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

// StageError reports the stage a deploy stopped at. It matches both the
// stage's sentinel error and the underlying cause with errors.Is/As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("(%d) %s", e.Stage.Number(), e.Stage.Failure(e.Err))
}

func (e *StageError) Unwrap() []error {
	if sentinel := e.Stage.sentinel(); sentinel != nil {
		return []error{sentinel, e.Err}
	}
	return []error{e.Err}
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return 0, false
}
