package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kiln_controller/internal/models"
	"kiln_controller/internal/service"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List logged run events",
	Example: `  kilnd events --type ABORTED
  kilnd events --from 2025-01-01 --to 2025-01-31 --limit 50`,
	RunE: runEvents,
}

func init() {
	f := eventsCmd.Flags()
	f.String("from", "", "Earliest event time (RFC3339 or YYYY-MM-DD)")
	f.String("to", "", "Latest event time (RFC3339 or YYYY-MM-DD, date means end of day)")
	f.String("type", "", "Event type, e.g. STARTED or ABORTED")
	f.String("run", "", "Run ID")
	f.Int("limit", 100, "Maximum number of events")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	fromStr, _ := f.GetString("from")
	toStr, _ := f.GetString("to")
	typ, _ := f.GetString("type")
	runID, _ := f.GetString("run")
	limit, _ := f.GetInt("limit")

	from, err := parseFlagTime(fromStr, false)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseFlagTime(toStr, true)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	repos, conn, err := openRepos(cfg.Infra.DBPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, err := service.NewEventLogService(repos.EventRepo).List(cmd.Context(), service.LogFilter{
		From:  from,
		To:    to,
		Type:  typ,
		RunID: runID,
		Limit: limit,
	})
	if err != nil {
		return err
	}
	printEvents(cmd.OutOrStdout(), events)
	return nil
}

// parseFlagTime accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseFlagTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised time %q", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

func eventColor(typ string) *color.Color {
	switch typ {
	case models.EventAborted, models.EventSensorFault, models.EventInterrupted:
		return color.New(color.FgRed)
	case models.EventEnded:
		return color.New(color.FgCyan)
	case models.EventStarted, models.EventResumed:
		return color.New(color.FgGreen)
	case models.EventPaused, models.EventThresholdWait:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func printEvents(w io.Writer, events []models.KilnEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}
	for _, ev := range events {
		line := fmt.Sprintf("%s  %s  %s",
			ev.OccurredAt.Local().Format(time.DateTime),
			eventColor(ev.Type).Sprintf("%-16s", ev.Type),
			ev.Description)
		if ev.Metadata != nil {
			if b, err := json.Marshal(ev.Metadata); err == nil && string(b) != "null" {
				line += "  " + color.New(color.Faint).Sprint(string(b))
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
