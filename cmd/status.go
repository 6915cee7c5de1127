package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status <username>",
	Short: "Show detailed status of an allocation",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mgr, err := manager()
	if err != nil {
		return err
	}
	entry, err := mgr.Status(ctx, args[0])
	if err != nil {
		return err
	}
	rec := entry.Record

	w := out()
	fmt.Fprintf(w, "Username: %s\n", rec.Username)
	fmt.Fprintf(w, "Port: %d\n", rec.Port)
	fmt.Fprintf(w, "Container: %s\n", rec.ContainerName())
	fmt.Fprintf(w, "Image: %s\n", rec.ContainerImageRef)
	if rec.GPUSpec != "" {
		fmt.Fprintf(w, "GPUs: %s\n", rec.GPUSpec)
	}
	if len(rec.ExtraRunArgs) > 0 {
		fmt.Fprintf(w, "Extra run args: %s\n", strings.Join(rec.ExtraRunArgs, " "))
	}
	fmt.Fprintf(w, "Created: %s\n", rec.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintln(w)

	status := healthOf(ctx, *entry)

	fmt.Fprintln(w, "Health Checks:")
	fmt.Fprintf(w, "  Container: %s\n", formatContainerStatus(entry.Container.Status))
	if !entry.Container.StartedAt.IsZero() {
		fmt.Fprintf(w, "  Uptime: %s\n", health.Uptime(entry.Container.StartedAt, time.Now()))
	}
	if status == health.StatusHealthy {
		fmt.Fprintln(w, "  SSH: ✓ reachable")
	} else {
		fmt.Fprintln(w, "  SSH: ✗ not reachable")
	}
	fmt.Fprintf(w, "  Overall: %s\n", status)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Connect: %s\n", connectOptions(rec, "").Command())

	return nil
}
