package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jayteealao/distpush/internal/prompt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example distpush.yaml",
	Long: `Write a commented example distpush.yaml to the current directory.

An existing file is left alone unless --force is given. With --interactive
the target is asked for in the terminal instead of writing the example.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	initForceFlag       bool
	initInteractiveFlag bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForceFlag, "force", "f", false, "overwrite an existing file")
	initCmd.Flags().BoolVarP(&initInteractiveFlag, "interactive", "i", false, "ask for the target instead of writing the example")
}

const exampleConfig = `# distpush configuration
#
# "distpush deploy" uses the top-level target; "distpush deploy <env>"
# lays the matching entry under environments: over it.
# Any key can also be set with DISTPUSH_<KEY>, e.g. DISTPUSH_PASSWORD.

name: my-site
script: npm run build     # build command, run in this directory
distPath: dist            # build output to upload
webDir: /var/www/html     # remote directory the archive is unpacked into

host: example.com
port: 22
username: deploy
# password: secret
privateKey: ~/.ssh/id_ed25519   # key file, or the PEM itself
# passphrase: secret
# knownHosts: ~/.ssh/known_hosts  # verify the host key; unverified when unset

# environments:
#   staging:
#     host: staging.example.com
#     webDir: /var/www/staging

# notify:
#   webhook:
#     url: https://hooks.example.com/deploy
#     headers:
#       Authorization: Bearer token
#   slack:
#     webhookURL: https://hooks.slack.com/services/T000/B000/XXXX
#     channel: "#deploys"
`

func runInit(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	target := filepath.Join(workDir, ConfigName)
	if _, err := os.Stat(target); err == nil && !initForceFlag {
		if !initInteractiveFlag {
			return fmt.Errorf("%s already exists (use --force to overwrite)", ConfigName)
		}
		overwrite, err := prompt.ConfirmAction("Overwrite "+ConfigName+"?", target)
		if err != nil {
			return err
		}
		if !overwrite {
			return fmt.Errorf("%s already exists", ConfigName)
		}
	}

	if initInteractiveFlag {
		values, err := prompt.CollectTarget()
		if err != nil {
			return err
		}
		if err := writeSettings(target, prompt.Settings(values)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
		return nil
	}

	if err := os.WriteFile(target, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", ConfigName, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
	return nil
}

// writeSettings writes settings as YAML to path.
func writeSettings(path string, settings map[string]interface{}) error {
	v := viper.New()
	v.SetConfigType("yaml")
	for k, val := range settings {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Chmod(path, 0600)
}
