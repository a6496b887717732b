// Package main provides gatewayctl, an operator CLI that runs loads, backups
// and restores directly against the configured warehouse and bucket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hiring-gateway/internal/app"
	"hiring-gateway/internal/config"
	"hiring-gateway/internal/logging"
	"hiring-gateway/internal/service"
)

var version = "dev"

// cli carries the global flags shared by every subcommand
type cli struct {
	configFile string
	actor      string
	out        io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:          "gatewayctl",
		Short:        "Operate the hiring gateway's tables and backups",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (default ./configs/config.yaml or ./config.yaml)")
	root.PersistentFlags().StringVar(&c.actor, "actor", currentUser(), "name recorded in the operation journal")

	root.AddCommand(
		newLoadCmd(c),
		newLoadAllCmd(c),
		newBackupCmd(c),
		newRestoreCmd(c),
		newListBackupsCmd(c),
		newTokenCmd(c),
	)
	return root
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "gatewayctl"
}

// run loads configuration, wires the services and hands them to fn
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (interface{}, error)) error {
	cfg, err := config.LoadFile(c.configFile)
	if err != nil {
		return err
	}
	logging.InitWriter(cmd.ErrOrStderr(), cfg.Logging.Level, "console")

	ctx := service.WithActor(log.Logger.WithContext(cmd.Context()), c.actor)
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return c.print(result)
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
