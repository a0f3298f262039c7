// Package main provides the entry point for VPN Panel.
// VPN Panel shows and drives the VPN of the bitmask daemon's active
// account from a terminal, a system tray indicator or a local HTTP API.
//
// Features:
//   - One connection state machine per account, rebuilt on account change
//   - Certificate renewal before the tunnel is started
//   - Live status and throughput while connected
//   - Desktop notifications, a state journal and Prometheus metrics
//   - Command-line interface for scripting and automation
//
// Usage:
//
//	vpn-panel [options]
//
// Environment:
//
//	The bitmask daemon must be running and reachable at backend_url.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/yllada/vpn-panel/api"
	"github.com/yllada/vpn-panel/bitmaskd"
	"github.com/yllada/vpn-panel/cli"
	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/config"
	"github.com/yllada/vpn-panel/journal"
	"github.com/yllada/vpn-panel/keyring"
	"github.com/yllada/vpn-panel/metrics"
	"github.com/yllada/vpn-panel/notify"
	"github.com/yllada/vpn-panel/panel"
	"github.com/yllada/vpn-panel/tray"
	"github.com/yllada/vpn-panel/tui"
	"github.com/yllada/vpn-panel/vpn"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	// General flags
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")
	configPath  = flag.String("config", "", "Use another configuration file")

	// CLI flags
	showStatus    = flag.Bool("status", false, "Show current connection status")
	connectVPN    = flag.Bool("connect", false, "Turn the VPN on")
	disconnectVPN = flag.Bool("disconnect", false, "Turn the VPN off")
	showHistory   = flag.Int("history", 0, "Show the last N state changes")

	// Front ends
	showTray  = flag.Bool("tray", false, "Show the system tray indicator")
	serveAddr = flag.String("serve", "", "Serve the local status API on this address")
)

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("VPN Panel v%s\n", appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cliMode := *showStatus || *connectVPN || *disconnectVPN || *showHistory > 0
	tuiMode := !cliMode && !*showTray && !cfg.Tray && term.IsTerminal(int(os.Stdout.Fd()))

	// Initialize logger with structured logging and file output
	logLevel := common.ParseLogLevel(cfg.LogLevel)
	if *verbose {
		logLevel = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:       logLevel,
		EnableFile:  true,
		MaxFileSize: 5 * 1024 * 1024, // 5MB
		MaxBackups:  5,
		Quiet:       tuiMode,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	app, err := newApp(ctx, cfg, !cliMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	switch {
	case cliMode:
		err = runCLI(ctx, app)
	case tuiMode:
		err = runTUI(ctx, app)
	case *showTray || cfg.Tray:
		runTray(ctx, app, cancel)
	default:
		common.LogInfo("Running without a front end; press Ctrl+C to stop")
		go app.mountAccount(ctx)
		<-ctx.Done()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		app.close()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFrom(*configPath)
	}
	return config.Load()
}

// app wires the daemon client, the panel and its observers.
type app struct {
	cfg     *config.Config
	client  *bitmaskd.Client
	bus     *vpn.EventBus
	panel   *panel.Panel
	journal *journal.Store
	history cli.History
	metrics *metrics.Metrics
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, interactive bool) (*app, error) {
	tokens := keyring.NewTokenStore(cfg.BackendURL, cfg.TokenFile)
	token, err := tokens.Get()
	if err != nil {
		common.LogWarn("No API token for %s: %v", cfg.BackendURL, err)
	}

	a := &app{
		cfg:     cfg,
		client:  bitmaskd.NewClient(cfg.BackendURL, token),
		bus:     vpn.NewEventBus(),
		metrics: metrics.New(),
	}
	a.panel = panel.New(a.client, a.bus,
		vpn.WithPollInterval(cfg.PollInterval),
		vpn.WithRecorder(a.metrics),
	)
	a.closers = append(a.closers, a.panel.Close)

	if cfg.Journal {
		path, err := journal.DefaultPath()
		if err == nil {
			a.journal, err = journal.Open(path)
		}
		if err != nil {
			common.LogWarn("Journal disabled: %v", err)
		} else {
			a.history = a.journal
			a.panel.OnChange(a.journal.Observe)
			a.closers = append(a.closers, func() { _ = a.journal.Close() })
		}
	}

	if interactive && cfg.ShowNotifications {
		if n, err := notify.NewDBusNotifier(); err != nil {
			common.LogWarn("Desktop notifications unavailable: %v", err)
		} else {
			w := notify.NewWatcher(n)
			a.panel.OnChange(w.Observe)
			a.closers = append(a.closers, w.Close, func() { _ = n.Close() })
		}
	}

	events := bitmaskd.NewEventSource(a.client, a.bus, cfg.EventPollInterval)
	go func() {
		if err := events.Run(ctx); err != nil {
			common.LogError("Event source stopped: %v", err)
		}
	}()

	// A login or logout may change the active account.
	a.bus.Register(vpn.EventAuthDone, func(vpn.Event) {
		go a.mountAccount(ctx)
	})

	addr := *serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	if addr != "" {
		var history api.History
		if a.history != nil {
			history = a.history
		}
		router := api.NewRouter(a.panel, history, a.metrics.Handler())
		go func() {
			if err := api.Serve(ctx, addr, router); err != nil {
				common.LogError("API server stopped: %v", err)
			}
		}()
	}
	return a, nil
}

// accountSource is the daemon's active account, or the configured one when
// the daemon reports none.
type accountSource struct {
	client   *bitmaskd.Client
	fallback string
}

func (s accountSource) ActiveAccount(ctx context.Context) (vpn.Account, error) {
	account, err := s.client.ActiveAccount(ctx)
	if err != nil {
		common.LogWarn("Looking up active account: %v", err)
	}
	if account.ID == "" && s.fallback != "" {
		return vpn.Account{ID: s.fallback, Domain: common.DomainOf(s.fallback)}, nil
	}
	if account.Domain == "" {
		if err == nil {
			err = errors.New("no active account; log in with the bitmask client first")
		}
		return vpn.Account{}, err
	}
	return account, nil
}

// mountAccount shows the VPN section of the active account.
func (a *app) mountAccount(ctx context.Context) {
	src := accountSource{client: a.client, fallback: a.cfg.Account}
	if err := a.panel.Refresh(ctx, src); err != nil {
		common.LogError("Mounting account: %v", err)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// runCLI handles command-line interface operations.
func runCLI(ctx context.Context, a *app) error {
	c := cli.New(a.panel, a.history)

	// History needs no daemon.
	if *showHistory > 0 {
		return c.History(ctx, *showHistory)
	}

	a.mountAccount(ctx)
	if a.panel.Account().Domain == "" {
		return errors.New("no account to show; log in with the bitmask client or set account in the configuration")
	}
	switch {
	case *connectVPN:
		return c.Connect(ctx)
	case *disconnectVPN:
		return c.Disconnect(ctx)
	default:
		return c.Status(ctx)
	}
}

func runTUI(ctx context.Context, a *app) error {
	t := tui.New(a.panel, tea.WithAltScreen(), tea.WithContext(ctx))
	a.panel.OnChange(t.Observe)
	go a.mountAccount(ctx)
	if err := t.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runTray(ctx context.Context, a *app, cancel context.CancelFunc) {
	ind := tray.New(a.panel, cancel)
	a.panel.OnChange(ind.Observe)
	go a.mountAccount(ctx)
	go func() {
		<-ctx.Done()
		ind.Quit()
	}()
	common.LogInfo("Starting %s v%s", common.AppName, appVersion)
	ind.Run()
}

// setupSignalHandler configures graceful shutdown on SIGINT/SIGTERM.
// When a signal is received, it cancels the context to allow cleanup.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()
}
