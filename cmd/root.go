// Package cmd provides CLI commands for distpush.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jayteealao/distpush/internal/config"
	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/jayteealao/distpush/internal/lock"
	"github.com/jayteealao/distpush/internal/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the current version of distpush.
// Can be overridden at build time: go build -ldflags "-X github.com/jayteealao/distpush/cmd.Version=v1.0.0"
var Version = "v0.1.0"

// ConfigName is the config file looked up in the working directory and in
// $HOME/.distpush.
const ConfigName = "distpush.yaml"

var (
	cfgFile string
	dataDir string
	verbose bool

	// configErr is the result of reading the config file in initConfig.
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "distpush",
	Short: "Build a site, ship it over SSH and unpack it on the server",
	Long: `distpush deploys a static build to a single host.

A deploy runs six stages in order and stops at the first failure:
  (1) build          run the configured build script
  (2) archive        zip the build output into dist.zip
  (3) connect        open an SSH connection to the host
  (4) upload         copy dist.zip to <webDir>/dist.zip
  (5) local-cleanup  delete the local dist.zip
  (6) remote-unpack  cd <webDir> && unzip -o dist.zip && rm -rf dist.zip`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// It is the only place the process exits with a non-zero status.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, shutting down...\n", sig)
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./distpush.yaml, then $HOME/.distpush/distpush.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for history and locks (default is $HOME/.distpush)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Bind flags to viper
	viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(strings.TrimSuffix(ConfigName, filepath.Ext(ConfigName)))
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".distpush"))
		}
	}

	// Read environment variables
	viper.SetEnvPrefix("DISTPUSH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := config.BindEnv(viper.GetViper()); err != nil {
		configErr = err
		return
	}

	// Read config file
	configErr = viper.ReadInConfig()
	if configErr == nil {
		printVerbose("Using config file: %s", viper.ConfigFileUsed())
	}
}

// configFound reports whether a config file was read.
func configFound() bool {
	return configErr == nil && viper.ConfigFileUsed() != ""
}

// loadConfigFile decodes the config read by initConfig. A missing file is
// only an error when --config named it: flags and DISTPUSH_* variables can
// describe a whole target on their own.
func loadConfigFile() (*config.File, error) {
	if configErr != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(configErr, &notFound) || errors.Is(configErr, fs.ErrNotExist)
		switch {
		case missing && cfgFile != "":
			return nil, fmt.Errorf("%w: %s", apperrors.ErrConfigNotFound, cfgFile)
		case missing:
			printVerbose("No %s found, using flags and environment only", ConfigName)
		default:
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, configErr)
		}
	}
	return config.Load(viper.GetViper())
}

// getDataDir returns the data directory, defaulting to $HOME/.distpush
func getDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	if d := viper.GetString("data-dir"); d != "" {
		return d, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".distpush"), nil
}

// initStore initializes and returns the state store.
func initStore() (*state.Store, error) {
	dir, err := getDataDir()
	if err != nil {
		return nil, err
	}

	store, err := state.New(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return store, nil
}

// initLockManager initializes and returns the lock manager.
func initLockManager() (*lock.Manager, error) {
	dir, err := getDataDir()
	if err != nil {
		return nil, err
	}

	manager, err := lock.NewManager(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lock manager: %w", err)
	}

	return manager, nil
}

// isVerbose returns true if verbose output is enabled.
func isVerbose() bool {
	return verbose || viper.GetBool("verbose")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if isVerbose() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
