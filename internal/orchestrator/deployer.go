// Package orchestrator runs the six-stage deploy: build, archive, connect,
// upload, local cleanup and remote unpack.
package orchestrator

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/jayteealao/distpush/internal/archive"
	"github.com/jayteealao/distpush/internal/artifact"
	"github.com/jayteealao/distpush/internal/build"
	"github.com/jayteealao/distpush/internal/config"
	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/jayteealao/distpush/internal/remote"
)

// StageEvent is passed to DeployOptions.OnStage as stages progress.
type StageEvent struct {
	Stage   Stage
	Status  StageStatus
	Message string
	Err     error
	Elapsed time.Duration
}

// DeployOptions contains options for a deployment.
type DeployOptions struct {
	SkipBuild bool
	OnStage   func(StageEvent) // Callback for stage progress
	OnVerbose func(msg string) // Callback for verbose messages
}

// StageReport records how a stage ended.
type StageReport struct {
	Stage   Stage
	Status  StageStatus
	Elapsed time.Duration
}

// DeployResult contains the result of a deployment. It is returned even on
// failure so callers can see how far the run got.
type DeployResult struct {
	ArchivePath string
	RemotePath  string
	Stages      []StageReport
	Unpack      *remote.Result
}

// Deployer orchestrates deployments.
type Deployer struct {
	workDir   string
	builder   Builder
	archiver  Archiver
	dial      Dialer
	artifacts Artifacts
}

// NewDeployer creates a Deployer from its collaborators. workDir is the
// invocation directory that relative dist paths resolve against.
func NewDeployer(workDir string, builder Builder, archiver Archiver, dial Dialer, artifacts Artifacts) *Deployer {
	return &Deployer{
		workDir:   workDir,
		builder:   builder,
		archiver:  archiver,
		dial:      dial,
		artifacts: artifacts,
	}
}

// NewDefaultDeployer wires the real build runner, zip builder, SSH dialer
// and the dist.zip artifact in workDir.
func NewDefaultDeployer(workDir string) *Deployer {
	return NewDeployer(
		workDir,
		build.NewRunner(workDir),
		archive.NewBuilder(),
		DialSSH,
		artifact.NewManager(workDir),
	)
}

// run tracks progress of a single Deploy call.
type run struct {
	opts   DeployOptions
	result *DeployResult
}

func (r *run) emit(ev StageEvent) {
	if r.opts.OnStage != nil {
		r.opts.OnStage(ev)
	}
}

func (r *run) verbose(format string, args ...interface{}) {
	if r.opts.OnVerbose != nil {
		r.opts.OnVerbose(fmt.Sprintf(format, args...))
	}
}

// stage runs fn as s, reporting start and outcome. Any error is wrapped in
// a StageError.
func (r *run) stage(s Stage, msg string, fn func() error) error {
	r.emit(StageEvent{Stage: s, Status: StatusStarted, Message: msg})
	start := time.Now()

	err := fn()
	elapsed := time.Since(start)

	if err != nil {
		r.result.Stages = append(r.result.Stages, StageReport{Stage: s, Status: StatusFailed, Elapsed: elapsed})
		stageErr := &StageError{Stage: s, Err: err}
		r.emit(StageEvent{Stage: s, Status: StatusFailed, Message: msg, Err: err, Elapsed: elapsed})
		return stageErr
	}

	r.result.Stages = append(r.result.Stages, StageReport{Stage: s, Status: StatusSucceeded, Elapsed: elapsed})
	r.emit(StageEvent{Stage: s, Status: StatusSucceeded, Message: msg, Elapsed: elapsed})
	return nil
}

func (r *run) skip(s Stage, msg string) {
	r.result.Stages = append(r.result.Stages, StageReport{Stage: s, Status: StatusSkipped})
	r.emit(StageEvent{Stage: s, Status: StatusSkipped, Message: msg})
}

// Deploy runs every stage in order and stops at the first failure. Completed
// stages are not rolled back: an uploaded archive stays uploaded if the
// unpack fails, and a partially written local archive stays on disk if
// archiving fails.
func (d *Deployer) Deploy(ctx context.Context, cfg config.DeployConfig, opts DeployOptions) (*DeployResult, error) {
	r := &run{
		opts: opts,
		result: &DeployResult{
			ArchivePath: d.artifacts.Path(),
			RemotePath:  path.Join(cfg.WebDir, artifact.FileName),
		},
	}

	// (1) build
	if opts.SkipBuild {
		r.skip(StageBuild, "build skipped")
	} else {
		err := r.stage(StageBuild, cfg.Script, func() error {
			return d.builder.Run(ctx, cfg.Script)
		})
		if err != nil {
			return r.result, err
		}
	}

	// (2) archive
	srcDir := d.resolveDistPath(cfg.DistPath)
	err := r.stage(StageArchive, fmt.Sprintf("Packing %s into %s", srcDir, artifact.FileName), func() error {
		return d.archiver.Create(ctx, srcDir, d.artifacts.Path())
	})
	if err != nil {
		return r.result, err
	}

	// (3) connect
	var sess Session
	err = r.stage(StageConnect, fmt.Sprintf("Connecting to %s", cfg.Address()), func() error {
		var dialErr error
		sess, dialErr = d.dial(ctx, remoteOptions(cfg))
		return dialErr
	})
	if err != nil {
		return r.result, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			r.verbose("Warning: failed to close ssh session: %v", err)
		}
	}()

	// (4) upload
	err = r.stage(StageUpload, fmt.Sprintf("Uploading %s to %s", artifact.FileName, cfg.WebDir), func() error {
		return sess.Upload(ctx, d.artifacts.Path(), r.result.RemotePath)
	})
	if err != nil {
		return r.result, err
	}

	// (5) local cleanup
	err = r.stage(StageLocalCleanup, fmt.Sprintf("Removing local %s", artifact.FileName), func() error {
		return d.artifacts.Remove()
	})
	if err != nil {
		return r.result, err
	}

	// (6) remote unpack
	command := remote.UnpackCommand(cfg.WebDir, artifact.FileName)
	r.verbose("Remote command: %s", command)
	err = r.stage(StageRemoteUnpack, fmt.Sprintf("Unpacking %s", artifact.FileName), func() error {
		res, execErr := sess.Exec(ctx, command)
		r.result.Unpack = res
		if execErr != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrRemoteUnpackFailed, execErr)
		}
		if !res.OK() {
			return fmt.Errorf("%w: %s", apperrors.ErrRemoteUnpackFailed, res)
		}
		return nil
	})
	if err != nil {
		return r.result, err
	}

	return r.result, nil
}

func (d *Deployer) resolveDistPath(distPath string) string {
	if filepath.IsAbs(distPath) {
		return filepath.Clean(distPath)
	}
	return filepath.Join(d.workDir, distPath)
}

func remoteOptions(cfg config.DeployConfig) remote.Options {
	return remote.Options{
		Host:       cfg.Host,
		Port:       cfg.Port,
		Username:   cfg.Username,
		Password:   cfg.Password,
		PrivateKey: cfg.PrivateKey,
		Passphrase: cfg.Passphrase,
		KnownHosts: cfg.KnownHosts,
	}
}
