package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
)

var startCmd = &cobra.Command{
	Use:   "start <username>",
	Short: "Start a stopped guest container",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	mgr, err := manager()
	if err != nil {
		return err
	}

	logging.Debug("starting container", "username", args[0])
	rec, err := mgr.Start(context.Background(), args[0])
	if err != nil {
		return err
	}

	logSuccess("Started %s", rec.ContainerName())
	return nil
}
