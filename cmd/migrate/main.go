package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/example/deepthoughts/internal/config"
	"github.com/example/deepthoughts/internal/migrations"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the PostgreSQL schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (default: $MIGRATIONS_DIR)")

	// open resolves configuration lazily so --help works without a database.
	open := func() (*migrations.Runner, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
		if cfg.DBAdapter != "postgres" {
			return nil, fmt.Errorf("migrations only work with PostgreSQL. Current adapter: %s", cfg.DBAdapter)
		}
		if dir == "" {
			dir = cfg.MigrationsDir
		}
		return migrations.Open(dir, cfg.PostgresDSN)
	}

	root.AddCommand(newUpCmd(open), newDownCmd(open), newVersionCmd(open), newForceCmd(open))
	return root
}

type opener func() (*migrations.Runner, error)

func newUpCmd(open opener) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Up(steps); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations applied successfully")
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 = all)")
	return cmd
}

func newDownCmd(open opener) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Down(steps); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations rolled back successfully")
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back (0 = all)")
	return cmd
}

func newVersionCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			v, dirty, err := r.Version()
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			if dirty {
				return fmt.Errorf("database is in a dirty state (version %d)", v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", v)
			return nil
		},
	}
}

func newForceCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Mark the database as being at version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version <= 0 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Force(version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Forced database to version %d\n", version)
			return nil
		},
	}
}
