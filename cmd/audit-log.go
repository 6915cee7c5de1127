package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/audit"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
)

var auditLogCmd = &cobra.Command{
	Use:   "audit-log <username>",
	Short: "Display the audit trail for a guest",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditLog,
}

var auditLogJSON bool

func init() {
	auditLogCmd.Flags().BoolVar(&auditLogJSON, "json", false, "Output events as JSON lines")
	rootCmd.AddCommand(auditLogCmd)
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	username := args[0]
	if err := config.ValidateUsername(username); err != nil {
		return errors.InvalidUsername(username, err)
	}

	auditLogger := audit.NewLogger(app.Default.Paths().AuditDir)
	events, err := auditLogger.Events(username)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		logInfo("No events found for %s", username)
		return nil
	}

	w := out()
	for _, e := range events {
		if auditLogJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(w, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("[%s] %-8s %s", ts, e.Type, e.Username)
		if e.Port > 0 {
			line += fmt.Sprintf(" :%d", e.Port)
		}
		if e.Details != "" {
			line += fmt.Sprintf(" (%s)", e.Details)
		}
		fmt.Fprintln(w, line)
	}

	return nil
}
