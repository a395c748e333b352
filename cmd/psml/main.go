// Package main provides the psml binary: validation, formatting, conversion and
// session-backed editing of PSML prompt documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlas-foundry/psml-go-sdk/config"
	"github.com/atlas-foundry/psml-go-sdk/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// errInvalid is returned when a validated document has errors (or warnings under
// --fail-on-warnings); the diagnostics themselves are already printed.
var errInvalid = errors.New("validation failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the persistent flags are parsed.
type app struct {
	configPath string
	logMode    string

	cfg *config.Config
	log *logger.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "psml",
		Short: "Author and validate PSML prompt documents",
		Long: `psml works with PSML, an XML dialect for structured LLM prompts.

It validates documents against the built-in schema, prints their canonical form,
converts them to chat messages, markdown, org or Graphviz, and edits a persisted
session document node by node.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	f.StringVar(&a.logMode, "log", "", "Log mode (dev, prod, quiet); overrides log.mode")

	cmd.AddCommand(
		validateCmd(a),
		fmtCmd(a),
		convertCmd(a),
		graphCmd(a),
		schemaCmd(a),
		newCmd(a),
		docCmd(a),
	)
	return cmd
}

// setup loads the layered configuration and builds the logger.
func (a *app) setup() error {
	boot := logger.NewNop()
	if a.logMode != "" {
		l, err := logger.New(a.logMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		boot = l
	}
	cfg, err := config.NewLoader(boot).Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	mode := cfg.Log.Mode
	if a.logMode != "" {
		mode = a.logMode
	}
	log, err := logger.New(mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = log
	return nil
}
