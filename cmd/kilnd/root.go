package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kiln_controller/internal/config"
	"kiln_controller/internal/repository"
	"kiln_controller/internal/repository/db"
)

var rootCmd = &cobra.Command{
	Use:   "kilnd",
	Short: "kilnd runs and inspects a single-kiln firing controller",
	Long: `kilnd drives one electric kiln through stored firing programs.

"kilnd serve" starts the control loop and the HTTP API. The other commands
read the controller database directly and work while the daemon is running.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs", "Directory containing config.yml")
}

// loadConfig reads config.yml and derives the control configuration.
func loadConfig(cmd *cobra.Command) (config.Config, config.Control, error) {
	dir, _ := cmd.Flags().GetString("config")
	v, err := config.Read(dir)
	if err != nil {
		return config.Config{}, config.Control{}, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, config.Control{}, fmt.Errorf("load config: %w", err)
	}
	ctrl, err := config.BuildControl(cfg.Prefs)
	if err != nil {
		return config.Config{}, config.Control{}, fmt.Errorf("control config: %w", err)
	}
	return cfg, ctrl, nil
}

// openRepos opens the sqlite database at path.
func openRepos(path string) (*repository.Repository, *sql.DB, error) {
	conn, err := db.InitDB(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return repository.NewRepository(conn), conn, nil
}
