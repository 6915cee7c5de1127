package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List active allocations",
	Args:  cobra.NoArgs,
	RunE:  runPs,
}

var psJSON bool

func init() {
	psCmd.Flags().BoolVar(&psJSON, "json", false, "Output allocations as JSON")
	rootCmd.AddCommand(psCmd)
}

// psEntry is the JSON form of one listed allocation.
type psEntry struct {
	*config.AllocationRecord
	ContainerName string `json:"containerName"`
	Status        string `json:"status"`
}

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func runPs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	mgr, err := manager()
	if err != nil {
		return err
	}
	entries, err := mgr.List(ctx)
	if err != nil {
		return err
	}

	if psJSON {
		list := make([]psEntry, 0, len(entries))
		for _, e := range entries {
			list = append(list, psEntry{
				AllocationRecord: e.Record,
				ContainerName:    e.Record.ContainerName(),
				Status:           string(e.Container.Status),
			})
		}
		enc := json.NewEncoder(out())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(entries) == 0 {
		logInfo("No allocations found. Create one with: guest-ctl up -u <username> --public-key-file <key.pub>")
		return nil
	}

	w := tabwriter.NewWriter(out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tPORT\tIMAGE\tSTATUS\tGPUS\tCREATED")
	fmt.Fprintln(w, "--------\t----\t-----\t------\t----\t-------")

	for _, e := range entries {
		gpus := e.Record.GPUSpec
		if gpus == "" {
			gpus = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Record.Username,
			strconv.Itoa(e.Record.Port),
			e.Record.ContainerImageRef,
			formatContainerStatus(e.Container.Status),
			gpus,
			humanize.Time(e.Record.CreatedAt),
		)
	}

	return w.Flush()
}

func formatContainerStatus(status runtime.ContainerStatus) string {
	switch status {
	case runtime.StatusRunning:
		return runningStyle.Render("● running")
	case runtime.StatusStopped:
		return stoppedStyle.Render("○ stopped")
	case runtime.StatusNotFound:
		return missingStyle.Render("✗ missing")
	default:
		return string(status)
	}
}
