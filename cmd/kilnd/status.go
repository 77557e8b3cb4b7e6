package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kiln_controller/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last recorded run snapshot",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print the raw snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	repos, conn, err := openRepos(cfg.Infra.DBPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	snap, err := repos.StateRepo.Load(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printStatus(cmd.OutOrStdout(), snap, time.Now())
	return nil
}

// stateColor picks a colour per run state display name.
func stateColor(state string) *color.Color {
	switch state {
	case models.StateRunning.String():
		return color.New(color.FgGreen, color.Bold)
	case models.StatePaused.String(), models.StateThreshold.String():
		return color.New(color.FgYellow)
	case models.StateAborted.String():
		return color.New(color.FgRed, color.Bold)
	case models.StateEnded.String():
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

func printStatus(w io.Writer, s models.RunSnapshot, now time.Time) {
	if s.UpdatedAt.IsZero() {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("no run recorded yet"))
		return
	}
	state := s.State
	if state == "" {
		state = models.StateNone.String()
	}
	fmt.Fprintf(w, "State:    %s\n", stateColor(state).Sprint(state))
	if s.ProgramName != "" {
		fmt.Fprintf(w, "Program:  %s", s.ProgramName)
		if s.SegmentCount > 0 {
			fmt.Fprintf(w, " (segment %d/%d)", s.SegmentIndex+1, s.SegmentCount)
		}
		fmt.Fprintln(w)
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:      %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Kiln:     %.1f °C (setpoint %.1f °C)\n", s.KilnTempC, s.SetpointC)
	fmt.Fprintf(w, "Housing:  %.1f °C\n", s.HousingTempC)
	fmt.Fprintf(w, "Duty:     %.0f%%  relay %s\n", s.Duty*100, onOff(s.RelayOn))
	if s.AlarmOn {
		fmt.Fprintf(w, "Alarm:    %s\n", color.New(color.FgRed, color.Bold).Sprint("ON"))
	}
	if s.ErrorCode != "" {
		fmt.Fprintf(w, "Error:    %s\n", color.New(color.FgRed).Sprint(s.ErrorCode))
	}
	if s.ElapsedSec > 0 {
		fmt.Fprintf(w, "Elapsed:  %s\n", (time.Duration(s.ElapsedSec) * time.Second).String())
	}
	if s.ProjectedEnd != nil && s.ProjectedEnd.After(now) {
		fmt.Fprintf(w, "ETA:      %s (in %s)\n", s.ProjectedEnd.Local().Format(time.DateTime), s.ProjectedEnd.Sub(now).Round(time.Minute))
	}
	fmt.Fprintf(w, "Updated:  %s\n", s.UpdatedAt.Local().Format(time.DateTime))
}

func onOff(on bool) string {
	if on {
		return color.New(color.FgGreen).Sprint("on")
	}
	return "off"
}
