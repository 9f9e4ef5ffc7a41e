package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"thedump/internal/app"
	"thedump/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X thedump/cmd/dumpctl/cmd.Version=...".
var Version = "dev"

var (
	// configFile overrides DUMP_CONFIG_FILE
	configFile string
	// jsonOutput switches every command to JSON output
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "dumpctl",
	Short: "Operate a document repository",
	Long: `dumpctl inspects and repairs the document pipeline directly against the
configured stores.

Examples:
  dumpctl migrate
  dumpctl status 6f1c2f5e-1b59-4a57-9d0b-0c1f3f0e2a11
  dumpctl search "lease agreement" --json
  dumpctl sweep`,
	SilenceUsage: true,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (defaults to $DUMP_CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
}

// openApp loads configuration the same way the binaries do and builds the
// configured components.
func openApp(ctx context.Context) (*app.App, error) {
	_ = godotenv.Load(".env")
	if configFile != "" {
		if err := os.Setenv("DUMP_CONFIG_FILE", configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app.NewLogger(cfg, os.Stderr)
	return app.New(ctx, cfg)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
