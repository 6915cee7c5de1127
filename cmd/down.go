package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
)

var downCmd = &cobra.Command{
	Use:   "down <username>",
	Short: "Release an allocation and remove its container",
	Long: `Destroy the guest's container, then delete its allocation record and
build context. If the container cannot be removed the record is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	username := args[0]

	mgr, err := manager()
	if err != nil {
		return err
	}

	logging.Debug("releasing allocation", "username", username)
	logInfo("Releasing allocation for %s...", username)

	rec, err := mgr.Release(context.Background(), username)
	if err != nil {
		return err
	}

	logSuccess("Released %s (port %d)", username, rec.Port)
	return nil
}
