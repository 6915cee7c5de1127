package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
)

var (
	verbose        bool
	jsonOutput     bool
	hostConfigPath string

	// hostConfigLoaded is set once app.Default carries a host config.
	hostConfigLoaded bool
)

var rootCmd = &cobra.Command{
	Use:   "guest-ctl",
	Short: "Guest container provisioning CLI",
	Long: `guest-ctl hands out SSH-accessible containers on a shared host.

Each guest gets:
  - A container built from a base image with their public key installed
  - A unique host port forwarded to the container's sshd
  - A persistent allocation record, reused on repeated requests`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, os.Stderr)
		return loadHostConfig(cmd)
	},
}

// loadHostConfig installs the host config into app.Default. An explicit
// --host-config always reloads.
func loadHostConfig(cmd *cobra.Command) error {
	if hostConfigLoaded && !cmd.Flags().Changed("host-config") {
		return nil
	}

	path := config.ConfigPath(hostConfigPath)
	cfg, err := config.LoadHostConfig(path)
	if err != nil {
		return errors.ConfigError("failed to load host config", err)
	}
	logging.Debug("loaded host config", "path", path, "stateDir", cfg.StateDir, "backend", cfg.Store.Backend)

	app.SetDefault(app.New(app.WithHostConfig(cfg)))
	hostConfigLoaded = true
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&hostConfigPath, "host-config", "", "Host config file (default $"+config.ConfigEnvVar+" or "+config.DefaultPaths().ConfigFile+")")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
