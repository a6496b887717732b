package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hiring-gateway/internal/app"
	"hiring-gateway/internal/config"
	"hiring-gateway/internal/security"
)

func newLoadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load <table>",
		Short: "Replace a table with {csv_prefix}/{table}.csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Ingest.LoadTable(ctx, args[0])
			})
		},
	}
}

func newLoadAllCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load-all",
		Short: "Load every .csv object under the CSV prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Ingest.LoadAll(ctx)
			})
		},
	}
}

func newBackupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <table>",
		Short: "Export a table to a timestamped Avro artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Backups.Backup(ctx, args[0])
			})
		},
	}
}

func newRestoreCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <table>",
		Short: "Reload a table from its newest backup",
		Long: `Reload a table from its newest backup. Rows still in the warehouse's
streaming buffer force a drop and recreate of the table before the reload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Restore.Restore(ctx, args[0])
			})
		},
	}
}

func newListBackupsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups <table>",
		Short: "List a table's backup artifacts, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				return a.Backups.ListBackups(ctx, args[0])
			})
		},
	}
}

func newTokenCmd(c *cli) *cobra.Command {
	var (
		roles    []string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Mint a bearer token signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(c.configFile)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if r != security.RoleOperator && r != security.RoleViewer {
					return fmt.Errorf("unknown role %q (want %s or %s)", r, security.RoleOperator, security.RoleViewer)
				}
			}
			if duration <= 0 {
				duration = cfg.Security.JWTExpiration
			}

			token, err := security.NewJWTManager(cfg.Security.JWTSecret, duration).
				GenerateToken(args[0], args[0], roles)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			_, err = fmt.Fprintln(c.out, strings.TrimSpace(token))
			return err
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", []string{security.RoleViewer}, "roles to grant (operator, viewer)")
	cmd.Flags().DurationVar(&duration, "ttl", 0, "token lifetime (default security.jwt_expiration)")
	return cmd
}
