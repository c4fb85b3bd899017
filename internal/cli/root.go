// Package cli wires the syncconsole commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-syncconsole/internal/config"
	"github.com/goliatone/go-syncconsole/pkg/prompt"
)

// app is the state shared by every command once flags are parsed.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

type appKey struct{}

func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok || a == nil {
		return nil, errors.New("cli: configuration not loaded")
	}
	return a, nil
}

// errSilent marks failures whose details were already printed.
var errSilent = errors.New("cli: failed")

// NewRootCmd creates the root cobra command. Logs go to stderr.
func NewRootCmd(stderr io.Writer) *cobra.Command {
	return newRoot(stderr, prompt.NewSurveyDriver())
}

func newRoot(stderr io.Writer, driver prompt.Driver) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "syncconsole",
		Short:         "Management console for data replication jobs",
		Long:          "syncconsole serves a web console for configuring sources, destinations and replication jobs, and ships form tooling for connector schemas.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			cfg, err := config.Load(configPath, os.LookupEnv)
			if err != nil {
				return err
			}
			if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
				return err
			}
			if cfg.Dev && !cmd.Flags().Changed("log-level") {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a := &app{cfg: cfg, logger: cfg.NewLogger(stderr)}
			cmd.SetContext(withApp(cmd.Context(), a))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newPromptCmd(driver))
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd(os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
