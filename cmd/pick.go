package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/lifecycle"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/runtime"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactive allocation picker",
	Long: `Opens an interactive TUI listing every allocation on this host.

Use arrow keys or j/k to navigate, / to filter.

Actions:
  Enter  - Show the connect command for the selected guest
  s      - Start or stop the selected guest's container
  d      - Show instructions for releasing the selected guest
  q/Esc  - Quit`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

// runPicker is replaced in tests.
var runPicker = tui.RunPicker

func init() {
	rootCmd.AddCommand(pickCmd)
}

func pickerItems(ctx context.Context, entries []lifecycle.Entry) []tui.Item {
	items := make([]tui.Item, len(entries))
	for i, e := range entries {
		uptime := ""
		if !e.Container.StartedAt.IsZero() {
			uptime = health.Uptime(e.Container.StartedAt, timeNow())
		}
		items[i] = tui.Item{
			Record: e.Record,
			Status: healthOf(ctx, e),
			Uptime: uptime,
		}
	}
	return items
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logging.Debug("picker mode started")

	mgr, err := manager()
	if err != nil {
		return err
	}
	entries, err := mgr.List(ctx)
	if err != nil {
		return err
	}

	items := pickerItems(ctx, entries)
	if len(items) == 0 || !stdoutIsTerminal() {
		fmt.Fprint(out(), tui.SimplePicker(items))
		return nil
	}

	result, err := runPicker(items)
	if err != nil {
		return fmt.Errorf("picker error: %w", err)
	}

	logging.Debug("picker result", "action", result.Action)
	return handlePick(ctx, mgr, entries, result)
}

func handlePick(ctx context.Context, mgr *lifecycle.Manager, entries []lifecycle.Entry, result tui.PickerResult) error {
	if result.Item == nil {
		return nil
	}
	rec := result.Item.Record

	switch result.Action {
	case tui.ActionConnect:
		fmt.Fprintf(out(), "Connect: %s\n", connectOptions(rec, "").Command())

	case tui.ActionToggle:
		if containerStatusOf(entries, rec.Username) == runtime.StatusRunning {
			if _, err := mgr.Stop(ctx, rec.Username); err != nil {
				return err
			}
			logSuccess("Stopped %s", rec.ContainerName())
			return nil
		}
		if _, err := mgr.Start(ctx, rec.Username); err != nil {
			return err
		}
		logSuccess("Started %s", rec.ContainerName())

	case tui.ActionDown:
		logInfo("To release %s, run: guest-ctl down %s", rec.Username, rec.Username)
	}

	return nil
}

func containerStatusOf(entries []lifecycle.Entry, username string) runtime.ContainerStatus {
	for _, e := range entries {
		if e.Record.Username == username {
			return e.Container.Status
		}
	}
	return runtime.StatusUnknown
}
