package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kiln_controller/internal/engine"
	"kiln_controller/internal/models"
	"kiln_controller/internal/service"
)

var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "Manage stored firing programs",
}

var programsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored programs",
	Args:  cobra.NoArgs,
	RunE: withPrograms(func(cmd *cobra.Command, svc *service.ProgramService, _ []string) error {
		list, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		printProgramList(cmd.OutOrStdout(), list)
		return nil
	}),
}

var programsShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a program's segments",
	Args:  cobra.ExactArgs(1),
	RunE: withPrograms(func(cmd *cobra.Command, svc *service.ProgramService, args []string) error {
		p, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printProgram(cmd.OutOrStdout(), p)
		return nil
	}),
}

var programsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Validate and store a program from a JSON file",
	Long: `Reads a program such as

  {"name": "bisque", "segments": [{"target_c": 600, "ramp": "6h"}, {"target_c": 1000, "ramp": "3h", "dwell": "10m"}]}

and stores it under its name, replacing any program with the same name.`,
	Args: cobra.ExactArgs(1),
	RunE: withPrograms(func(cmd *cobra.Command, svc *service.ProgramService, args []string) error {
		p, err := readProgramFile(args[0])
		if err != nil {
			return err
		}
		if err := svc.Save(cmd.Context(), p); err != nil {
			var pe *engine.ProgramError
			if errors.As(err, &pe) {
				return fmt.Errorf("%s rejected: %s (%s)", p.Name, pe.Reason, pe.Code)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d segments, %s)\n",
			color.New(color.FgGreen).Sprint("saved"), p.Name, len(p.Segments), p.TotalDuration())
		return nil
	}),
}

var programsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a stored program",
	Args:  cobra.ExactArgs(1),
	RunE: withPrograms(func(cmd *cobra.Command, svc *service.ProgramService, args []string) error {
		if err := svc.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.New(color.FgYellow).Sprint("deleted"), args[0])
		return nil
	}),
}

func init() {
	programsCmd.AddCommand(programsListCmd, programsShowCmd, programsImportCmd, programsDeleteCmd)
	rootCmd.AddCommand(programsCmd)
}

// withPrograms opens the program store for the duration of fn.
func withPrograms(fn func(*cobra.Command, *service.ProgramService, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, ctrl, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		repos, conn, err := openRepos(cfg.Infra.DBPath)
		if err != nil {
			return err
		}
		defer conn.Close()
		return fn(cmd, service.NewProgramService(repos.ProgramRepo, ctrl.Safety.MaxTempC), args)
	}
}

func readProgramFile(path string) (models.FiringProgram, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return models.FiringProgram{}, err
	}
	var p models.FiringProgram
	if err := json.Unmarshal(b, &p); err != nil {
		return models.FiringProgram{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

func printProgramList(w io.Writer, list []models.FiringProgram) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no programs stored")
		return
	}
	for _, p := range list {
		fmt.Fprintf(w, "%-20s  %2d segments  %10s  %s\n",
			p.Name, len(p.Segments), p.TotalDuration(), p.Description)
	}
}

func printProgram(w io.Writer, p models.FiringProgram) {
	fmt.Fprintln(w, color.New(color.Bold).Sprint(p.Name))
	if p.Description != "" {
		fmt.Fprintln(w, p.Description)
	}
	for i, s := range p.Segments {
		fmt.Fprintf(w, "  %2d. %7.1f °C  ramp %-8s dwell %s\n", i+1, s.TargetC, s.Ramp, s.Dwell)
	}
	fmt.Fprintf(w, "total %s\n", p.TotalDuration())
}
