package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jayteealao/distpush/internal/config"
	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/jayteealao/distpush/internal/git"
	"github.com/jayteealao/distpush/internal/lock"
	"github.com/jayteealao/distpush/internal/notify"
	"github.com/jayteealao/distpush/internal/orchestrator"
	"github.com/jayteealao/distpush/internal/state"
	"github.com/jayteealao/distpush/internal/tui"
	"github.com/jayteealao/distpush/internal/validate"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy [environment]",
	Short: "Build and deploy to the configured host",
	Long: `Build the project, upload the output and unpack it on the remote host.

Without an argument the top-level target of distpush.yaml is used. With an
argument the named entry under "environments:" is laid over it. Flags
override individual fields.

Examples:
  distpush deploy
  distpush deploy staging
  distpush deploy --host 192.0.2.10 --web-dir /var/www/html --skip-build`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeploy,
}

var (
	deployScriptFlag     string
	deployDistPathFlag   string
	deployWebDirFlag     string
	deployHostFlag       string
	deployPortFlag       int
	deployUsernameFlag   string
	deployPasswordFlag   string
	deployPrivateKeyFlag string
	deployPassphraseFlag string
	deployKnownHostsFlag string
	skipBuildFlag        bool
)

// deployer runs the pipeline. Tests replace newDeployer.
type deployer interface {
	Deploy(ctx context.Context, cfg config.DeployConfig, opts orchestrator.DeployOptions) (*orchestrator.DeployResult, error)
}

var newDeployer = func(workDir string) deployer {
	return orchestrator.NewDefaultDeployer(workDir)
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVar(&deployScriptFlag, "script", "", "build command")
	deployCmd.Flags().StringVar(&deployDistPathFlag, "dist-path", "", "local build output directory")
	deployCmd.Flags().StringVar(&deployWebDirFlag, "web-dir", "", "remote directory to unpack into")
	deployCmd.Flags().StringVar(&deployHostFlag, "host", "", "remote host")
	deployCmd.Flags().IntVar(&deployPortFlag, "port", 0, "SSH port (default 22)")
	deployCmd.Flags().StringVar(&deployUsernameFlag, "username", "", "SSH user")
	deployCmd.Flags().StringVar(&deployPasswordFlag, "password", "", "SSH password")
	deployCmd.Flags().StringVar(&deployPrivateKeyFlag, "private-key", "", "private key file or PEM contents")
	deployCmd.Flags().StringVar(&deployPassphraseFlag, "passphrase", "", "private key passphrase")
	deployCmd.Flags().StringVar(&deployKnownHostsFlag, "known-hosts", "", "known_hosts file used to verify the host key")
	deployCmd.Flags().BoolVar(&skipBuildFlag, "skip-build", false, "reuse the existing build output")
}

func deployOverrides() config.DeployConfig {
	return config.DeployConfig{
		Script:     deployScriptFlag,
		DistPath:   deployDistPathFlag,
		WebDir:     deployWebDirFlag,
		Host:       deployHostFlag,
		Port:       deployPortFlag,
		Username:   deployUsernameFlag,
		Password:   deployPasswordFlag,
		PrivateKey: deployPrivateKeyFlag,
		Passphrase: deployPassphraseFlag,
		KnownHosts: deployKnownHostsFlag,
	}
}

// resolveTarget loads the config file and applies the environment and flag
// overrides on top of it.
func resolveTarget(env string) (config.DeployConfig, *config.File, error) {
	if env != "" {
		if err := validate.EnvironmentName(env); err != nil {
			return config.DeployConfig{}, nil, err
		}
	}

	file, err := loadConfigFile()
	if err != nil {
		return config.DeployConfig{}, nil, err
	}

	cfg, err := file.Target(env)
	if err != nil {
		return config.DeployConfig{}, nil, err
	}
	cfg = config.Override(cfg, deployOverrides())

	err = validate.DeployConfig(cfg)
	if err == nil && !skipBuildFlag {
		err = validate.BuildScript(cfg.Script)
	}
	if err != nil {
		if !configFound() {
			return config.DeployConfig{}, nil, fmt.Errorf("%w (no %s found, run 'distpush init' to create one)", err, ConfigName)
		}
		return config.DeployConfig{}, nil, err
	}
	return cfg, file, nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var env string
	if len(args) > 0 {
		env = args[0]
	}

	cfg, file, err := resolveTarget(env)
	if err != nil {
		return err
	}
	name := cfg.DisplayName()

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	// History is advisory: without a store the deploy still runs.
	var store state.StateStore
	if s, err := initStore(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: deployment history unavailable: %v\n", err)
	} else {
		defer s.Close()
		store = s
	}

	// Only a lock held by another run stops the deploy.
	if lockMgr, err := initLockManager(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: running without a lock: %v\n", err)
	} else {
		printVerbose("Acquiring lock for %s...", workDir)
		runLock, err := lockMgr.Acquire(lock.KeyForDir(workDir))
		switch {
		case errors.Is(err, apperrors.ErrProjectLocked):
			return fmt.Errorf("failed to acquire lock: %w", err)
		case err != nil:
			fmt.Fprintf(os.Stderr, "Warning: running without a lock: %v\n", err)
		default:
			defer runLock.Release()
		}
	}

	notifier := newNotifier(file.Notify)
	defer notifier.Close()

	// Record which revision of the working tree is being shipped
	revision, err := git.NewManager(workDir).Revision(ctx)
	if err != nil {
		printVerbose("Warning: failed to read git revision: %v", err)
	}

	// Create deployment record
	deployment := &state.Deployment{
		Name:     name,
		Host:     cfg.Host,
		WebDir:   cfg.WebDir,
		WorkDir:  workDir,
		Revision: revision.String(),
		Status:   state.StatusDeploying,
	}
	if store != nil {
		if err := store.CreateDeployment(ctx, deployment); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record deployment: %v\n", err)
			store = nil
		}
	}

	sendNotification(ctx, notifier, notify.Event{
		Type:    notify.EventDeployStarted,
		Project: name,
		Host:    cfg.Host,
		WebDir:  cfg.WebDir,
	})

	fmt.Fprintf(out, "Deploying %s to %s:%s\n", tui.TitleStyle.Render(name), cfg.Address(), cfg.WebDir)

	reporter := tui.NewReporter(out)
	start := time.Now()
	result, deployErr := newDeployer(workDir).Deploy(ctx, cfg, orchestrator.DeployOptions{
		SkipBuild: skipBuildFlag,
		OnStage:   reporter.OnStage,
		OnVerbose: func(msg string) { printVerbose("%s", msg) },
	})
	elapsed := time.Since(start).Round(time.Millisecond)

	if result != nil && result.Unpack != nil {
		printVerbose("Remote unpack output: %s", result.Unpack)
	}

	if store != nil {
		finishDeployment(ctx, store, deployment.ID, deployErr)
	}

	event := notify.Event{
		Project: name,
		Host:    cfg.Host,
		WebDir:  cfg.WebDir,
		Details: map[string]string{"duration": elapsed.String()},
	}
	if deployment.Revision != "" {
		event.Details["revision"] = deployment.Revision
	}
	if deployErr != nil {
		event.Type = notify.EventDeployFailed
		event.Message = deployErr.Error()
		if stage, ok := orchestrator.FailedStage(deployErr); ok {
			event.Stage = stage.String()
		}
	} else {
		event.Type = notify.EventDeploySucceeded
	}
	sendNotification(ctx, notifier, event)

	reporter.Done(name, deployErr)
	return deployErr
}

// finishDeployment records the outcome of a run. History is advisory, so a
// failed write only produces a warning.
func finishDeployment(ctx context.Context, store state.StateStore, id string, deployErr error) {
	// The run's context may be cancelled by now; the outcome is still recorded.
	ctx = context.WithoutCancel(ctx)

	if deployErr == nil {
		if err := store.FinishDeployment(ctx, id, state.StatusSucceeded, "", nil); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record deployment: %v\n", err)
		}
		return
	}

	var failedStage string
	if stage, ok := orchestrator.FailedStage(deployErr); ok {
		failedStage = stage.String()
	}
	errMsg := deployErr.Error()
	if err := store.FinishDeployment(ctx, id, state.StatusFailed, failedStage, &errMsg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record deployment: %v\n", err)
	}
}

// newNotifier registers the notifiers configured in distpush.yaml.
func newNotifier(cfg config.NotifyConfig) *notify.Manager {
	m := notify.NewManager()
	if cfg.Webhook.URL != "" {
		m.Register(notify.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Headers))
	}
	if cfg.Slack.WebhookURL != "" {
		m.Register(notify.NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel, cfg.Slack.Username))
	}
	return m
}

// sendNotification never fails the deploy.
func sendNotification(ctx context.Context, m *notify.Manager, event notify.Event) {
	if m.Count() == 0 {
		return
	}
	if err := m.Notify(context.WithoutCancel(ctx), event); err != nil {
		printVerbose("Warning: %v", err)
	}
}
