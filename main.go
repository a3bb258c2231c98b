// ABOUTME: Entry point for the touchpoint interaction tracker
// ABOUTME: Starts the TUI or routes to CLI commands based on arguments
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/harperreed/touchpoint/capture"
	"github.com/harperreed/touchpoint/cli"
	"github.com/harperreed/touchpoint/config"
	"github.com/harperreed/touchpoint/db"
	"github.com/harperreed/touchpoint/form"
	"github.com/harperreed/touchpoint/kv"
	"github.com/harperreed/touchpoint/netstatus"
	"github.com/harperreed/touchpoint/queue"
	"github.com/harperreed/touchpoint/remote"
	"github.com/harperreed/touchpoint/tui"
	"golang.org/x/term"
)

const version = "0.2.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.local/share/touchpoint)")
	local := flag.Bool("local", false, "Use the local SQLite store instead of the API")
	dictationCmd := flag.String("dictation-cmd", os.Getenv("TOUCHPOINT_DICTATION_CMD"), "Speech-to-text command streaming transcripts on stdout")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("touchpoint version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "config" {
		if err := cli.ConfigCommand(cfg, args[1:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *local {
		cfg.Local = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if len(args) == 0 {
		err = app.runTUI(ctx, *dictationCmd)
	} else {
		err = app.runCommand(ctx, args[0], args[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything opened for one run.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	logFile io.Closer
	backend remote.Backend
	local   *db.Store
	client  *remote.Client
	kv      *kv.Badger
	queue   *queue.Queue
	monitor *netstatus.Monitor
}

func open(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if err := os.MkdirAll(cfg.DataDir(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = logFile
	a.logger = log.NewWithOptions(logFile, log.Options{ReportTimestamp: true, Prefix: "touchpoint"})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		a.logger.SetLevel(level)
	}

	var sender queue.Sender
	var probe netstatus.Probe
	if cfg.UseLocalStore() {
		database, err := db.OpenDatabase(cfg.DatabasePath())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.local = db.NewStore(database)
		a.backend = a.local
		sender = remote.StoreSender{Store: a.local}
		probe = func(context.Context) error { return nil }
	} else {
		a.client = remote.NewClient(cfg.APIURL, cfg.APIToken, a.logger)
		a.backend = a.client
		sender = a.client
		probe = a.client.Ping
	}

	a.kv, err = kv.OpenBadger(cfg.QueueDir())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	a.queue = queue.New(a.kv, sender, queue.Options{
		MaxRetries:  cfg.MaxRetries,
		AutoSync:    cfg.AutoSync,
		BaseBackoff: cfg.BaseBackoff,
		MaxBackoff:  cfg.MaxBackoff,
		Logger:      a.logger,
	})
	if err := a.queue.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	a.monitor = netstatus.New(probe, cfg.PollInterval, a.logger)
	a.monitor.Subscribe(a.queue.SetOnline)

	a.logger.Info("started", "version", version, "local", cfg.UseLocalStore(), "queued", a.queue.Len())
	return a, nil
}

func (a *app) Close() {
	if a.queue != nil {
		a.queue.Wait()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
	if a.local != nil {
		_ = a.local.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func (a *app) runTUI(ctx context.Context, dictationCmd string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the interactive interface needs a terminal; see `touchpoint --help` for CLI commands")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.monitor.Run(ctx)
	go a.queue.Run(ctx, a.cfg.PollInterval)

	deps := tui.Deps{
		Store:     a.backend,
		Lookups:   a.backend,
		Creator:   a.backend,
		Queue:     a.queue,
		Monitor:   a.monitor,
		Drafts:    form.NewDraftCache(a.kv),
		Locator:   capture.NewStaticLocator(a.cfg.Location),
		Clipboard: capture.SystemClipboard{},
		Config:    a.cfg,
		Logger:    a.logger,
	}
	if dictationCmd != "" {
		rec, err := startDictation(ctx, dictationCmd, a.logger)
		if err != nil {
			a.logger.Warn("dictation unavailable", "err", err)
		} else {
			deps.Recognizer = rec
		}
	}

	m := tui.NewModel(deps)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI failed: %w", err)
	}
	return nil
}

// startDictation runs an external speech-to-text process whose stdout feeds
// the recognizer.
func startDictation(ctx context.Context, command string, logger *log.Logger) (capture.SpeechRecognizer, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", command, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			logger.Warn("dictation process exited", "err", err)
		}
	}()
	return capture.NewStreamRecognizer(stdout), nil
}

func (a *app) runCommand(ctx context.Context, command string, args []string) error {
	out := os.Stdout
	switch command {
	case "interactions":
		if len(args) == 0 || args[0] != "list" {
			return fmt.Errorf("usage: touchpoint interactions list [flags]")
		}
		return cli.InteractionsListCommand(ctx, a.backend, args[1:], out)
	case "queue":
		if len(args) > 0 && args[0] == "sync" && !a.monitor.Check(ctx) {
			return fmt.Errorf("offline: %v", a.monitor.LastError())
		}
		return cli.QueueCommand(ctx, a.queue, args, out)
	case "kpi":
		return cli.KPICommand(ctx, a.backend, args, out, time.Now)
	case "seed":
		if a.local == nil {
			return fmt.Errorf("seed only works with the local store (use --local)")
		}
		return cli.SeedCommand(ctx, a.local, out)
	case "help":
		printUsage()
		return nil
	}
	printUsage()
	return fmt.Errorf("unknown command: %s", command)
}

func printUsage() {
	fmt.Printf(`touchpoint - offline-first CRM interaction tracker

USAGE:
  touchpoint [flags]                  Start the interactive interface
  touchpoint [flags] <command> [args]

FLAGS:
  --data-dir DIR       Data directory (default: ~/.local/share/touchpoint)
  --local              Use the local SQLite store instead of the API
  --dictation-cmd CMD  Speech-to-text command for dictation (env TOUCHPOINT_DICTATION_CMD)
  --version            Show version and exit

COMMANDS:
  interactions list [--q TEXT] [--type T] [--status S] [--org ID]
                    [--sort COL] [--desc] [--page N] [--limit N]
  queue list                          Show queued changes
  queue sync                          Send every pending and failed change now
  queue retry <id>                    Return a failed change to pending
  queue remove <id>                   Discard a queued change
  kpi [--days N] [--org ID]           Show interaction metrics
  seed                                Add demo data to an empty local database
  config show                         Print the effective settings
  config set [--api-url U] [--api-token T] [--local] [--auto-sync]
             [--max-retries N] [--log-level L]

CONFIGURATION:
  Settings live in <data-dir>/config.json. Environment variables override them:
  TOUCHPOINT_API_URL, TOUCHPOINT_API_TOKEN, TOUCHPOINT_AUTO_SYNC,
  TOUCHPOINT_MAX_RETRIES, TOUCHPOINT_LOG_LEVEL. A .env file in the working
  directory or the data directory is read first.

Version: %s
`, version)
}
