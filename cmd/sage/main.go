// Package main is the entry point for the sage CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/flemzord/sage/internal/config"
	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/security"
	"github.com/flemzord/sage/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sage",
		Short:         "Conversational backend for the SAGE senior assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), serveCmd(), configCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sage %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

// runParams builds app.RunParams from the persistent serve flags.
func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return app.RunParams{
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Path to configuration file (default: search, then environment)")
	cmd.Flags().String("data-dir", "", "Directory for persistent data (default: $XDG_DATA_HOME/sage)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(context.Background(), runParams(cmd))
		},
	}
	addRunFlags(cmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and print it with secrets redacted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			quiet, _ := cmd.Flags().GetBool("quiet")
			return checkConfig(cmd.OutOrStdout(), path, quiet)
		},
	}
	check.Flags().BoolP("quiet", "q", false, "Only report validation errors")
	cmd.AddCommand(check)
	return cmd
}

// checkConfig validates the configuration, provisions every module against
// a scratch data directory, and prints the redacted result.
func checkConfig(out io.Writer, path string, quiet bool) error {
	cfg, source, err := app.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	dataDir, err := os.MkdirTemp("", "sage-check-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dataDir) }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.ServiceName, security.NewRedactor())

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}
	application.Stop()

	fmt.Fprintf(out, "Configuration OK (%s, %d modules)\n", source, len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	if quiet {
		return nil
	}

	rendered, err := renderRedacted(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s", rendered)
	return nil
}

// renderRedacted re-encodes cfg as YAML with secret values masked.
func renderRedacted(cfg *config.Config) ([]byte, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	security.NewRedactor().RedactMap(doc)
	return yaml.Marshal(doc)
}
