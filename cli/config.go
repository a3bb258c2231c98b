// ABOUTME: Config CLI commands
// ABOUTME: Shows the effective settings and persists changes to config.json
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/touchpoint/config"
)

// ConfigCommand routes `config show|set`.
func ConfigCommand(cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "show" {
		return configShow(cfg, out)
	}
	if args[0] != "set" {
		return fmt.Errorf("unknown config command: %s", args[0])
	}

	fs := flag.NewFlagSet("config set", flag.ContinueOnError)
	fs.SetOutput(out)
	apiURL := fs.String("api-url", cfg.APIURL, "CRM API base URL (empty for local mode)")
	apiToken := fs.String("api-token", cfg.APIToken, "Bearer token for the API")
	local := fs.Bool("local", cfg.Local, "Always use the local SQLite store")
	autoSync := fs.Bool("auto-sync", cfg.AutoSync, "Replay queued changes automatically")
	maxRetries := fs.Int("max-retries", cfg.MaxRetries, "Attempts before a change is marked failed")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NFlag() == 0 {
		return errors.New("config set needs at least one flag; see `touchpoint config set -h`")
	}
	if *maxRetries <= 0 {
		return fmt.Errorf("max-retries must be positive, got %d", *maxRetries)
	}
	switch strings.ToLower(*logLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", *logLevel)
	}

	cfg.APIURL = strings.TrimSpace(*apiURL)
	cfg.APIToken = strings.TrimSpace(*apiToken)
	cfg.Local = *local
	cfg.AutoSync = *autoSync
	cfg.MaxRetries = *maxRetries
	cfg.LogLevel = strings.ToLower(*logLevel)

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	_, _ = fmt.Fprintf(out, "✓ Saved %s\n", cfg.Path())
	return nil
}

func configShow(cfg *config.Config, out io.Writer) error {
	mode := "api"
	if cfg.UseLocalStore() {
		mode = "local"
	}
	token := ""
	if cfg.APIToken != "" {
		token = "(set)"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "config\t%s\n", cfg.Path())
	_, _ = fmt.Fprintf(w, "mode\t%s\n", mode)
	_, _ = fmt.Fprintf(w, "api-url\t%s\n", cfg.APIURL)
	_, _ = fmt.Fprintf(w, "api-token\t%s\n", token)
	_, _ = fmt.Fprintf(w, "auto-sync\t%t\n", cfg.AutoSync)
	_, _ = fmt.Fprintf(w, "max-retries\t%d\n", cfg.MaxRetries)
	_, _ = fmt.Fprintf(w, "log-level\t%s\n", cfg.LogLevel)
	return w.Flush()
}
