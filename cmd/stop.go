package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <username>",
	Short: "Stop a guest container, keeping its allocation",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	mgr, err := manager()
	if err != nil {
		return err
	}

	rec, err := mgr.Stop(context.Background(), args[0])
	if err != nil {
		return err
	}

	logSuccess("Stopped %s (port %d stays allocated)", rec.ContainerName(), rec.Port)
	return nil
}
