// Command astrotuxd is the dedicated server supervisor's entry point:
// install, update, or start the Astroneer Dedicated Server under Wine and
// keep it running until asked to stop. Grounded on the teacher's own
// main.go (flag parsing, signal.Notify loop, panic-recovery shutdown),
// generalised from a single flag-driven Discord bot startup to the
// positional install/update/start CLI spec.md §6 describes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/astrotux/astrotuxsupervisor/internal/config"
	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
	"github.com/astrotux/astrotuxsupervisor/internal/notify"
	"github.com/astrotux/astrotuxsupervisor/internal/supervisor"
)

// allEventKinds lists every ifaces.EventKind a notification sink might
// subscribe to.
var allEventKinds = []ifaces.EventKind{
	ifaces.EventMessage,
	ifaces.EventStart,
	ifaces.EventRegistered,
	ifaces.EventShutdown,
	ifaces.EventCrash,
	ifaces.EventPlayerJoin,
	ifaces.EventPlayerLeave,
	ifaces.EventCommand,
	ifaces.EventSave,
	ifaces.EventSavegameChange,
}

// parseDiscordWebhookURL splits a Discord webhook URL into the webhook ID
// and token discordgo's WebhookExecute expects, e.g.
// "https://discord.com/api/webhooks/<id>/<token>".
func parseDiscordWebhookURL(raw string) (id, token string, err error) {
	parts := strings.Split(strings.TrimSuffix(raw, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("malformed discord webhook URL %q", raw)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

const banner = `astrotuxd -- Astroneer Dedicated Server supervisor`

// resolveLogFilePath picks "<logDir>/astrotux_<YYYY-MM-DD>.log", or the
// first "_N" suffixed variant that does not already exist, so repeated
// runs on the same day never clobber a previous run's log.
func resolveLogFilePath(logDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}

	date := now.Format("2006-01-02")
	candidate := filepath.Join(logDir, fmt.Sprintf("astrotux_%s.log", date))
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		candidate = filepath.Join(logDir, fmt.Sprintf("astrotux_%s_%d.log", date, n))
	}
}

func main() {
	configPath := flag.String("config_path", "launcher.toml", "path to the launcher TOML configuration")
	astroPathFlag := flag.String("astro_path", "", "path to the Astroneer Dedicated Server install (overrides config)")
	depotDLExec := flag.String("depotdl_exec", "DepotDownloader", "path or PATH name of the DepotDownloader binary")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: astrotuxd <install|update|start> [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	command := flag.Arg(0)

	fmt.Println(banner)

	cfg, err := config.EnsureTOMLConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "astrotuxd:", err)
		os.Exit(1)
	}

	astroPath := cfg.AstroServerPath
	if *astroPathFlag != "" {
		astroPath = *astroPathFlag
	}

	logFilePath, err := resolveLogFilePath(cfg.LogPath, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "astrotuxd:", err)
		os.Exit(1)
	}
	if err := logger.SetFile(logFilePath); err != nil {
		fmt.Fprintln(os.Stderr, "astrotuxd: opening log file:", err)
		os.Exit(1)
	}
	defer logger.CloseLog()

	sup := supervisor.New(cfg, astroPath, cfg.WinePrefixPath, *depotDLExec)
	if cfg.LogDebugMessages {
		sup.SetLoglevel(2)
	}

	registerNotificationHandlers(sup.Notifier(), cfg.Notifications)

	ctx := context.Background()

	switch command {
	case "install":
		if err := sup.Install(ctx); err != nil {
			logger.LogError(sup, err.Error())
			os.Exit(1)
		}

	case "update":
		if err := sup.Update(ctx, true); err != nil {
			logger.LogError(sup, err.Error())
			os.Exit(1)
		}

	case "start":
		runStart(ctx, sup)

	default:
		fmt.Fprintf(os.Stderr, "astrotuxd: unknown command %q\n", command)
		os.Exit(1)
	}
}

// runStart drives a running supervisor until a terminal signal or a
// crash-to-Off transition ends it, mirroring the teacher's own
// signal.Notify-then-range loop in shape.
func runStart(ctx context.Context, sup *supervisor.Supervisor) {
	if err := sup.Start(ctx); err != nil {
		logger.LogError(sup, err.Error())
		os.Exit(1)
	}

	go func() {
		stdin := os.Stdin
		sup.RunStdinReader(stdin)
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt, syscall.SIGTERM)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "astrotuxd: panic: %v\n", r)
			_ = sup.Kill(ctx)
			os.Exit(1)
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sc:
			logger.LogInfo(sup, fmt.Sprintf("caught signal %s", sig))
			if err := sup.UserSignalExit(ctx); err != nil {
				logger.LogError(sup, err.Error())
			}
		case <-ticker.C:
			if sup.State() == ifaces.Off {
				return
			}
		}
	}
}

func registerNotificationHandlers(m *notify.Manager, nc config.NotificationConfig) {
	logHandler := notify.NewLogHandler(allEventKinds)
	if err := m.Register(logHandler); err != nil {
		logger.LogWarning(logHandler, err.Error())
	}

	switch nc.Method {
	case config.NotificationDiscord:
		if nc.Discord == nil || nc.Discord.WebhookURL == "" {
			return
		}
		id, token, err := parseDiscordWebhookURL(nc.Discord.WebhookURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "astrotuxd: discord webhook:", err)
			return
		}
		h, err := notify.NewDiscordWebhookHandler(id, token, allEventKinds)
		if err != nil {
			fmt.Fprintln(os.Stderr, "astrotuxd: discord webhook:", err)
			return
		}
		if err := m.Register(h); err != nil {
			logger.LogWarning(h, err.Error())
		}

	case config.NotificationNtfy:
		if nc.Ntfy == nil || nc.Ntfy.Topic == "" {
			return
		}
		topicURL := nc.Ntfy.Server + "/" + nc.Ntfy.Topic
		h := notify.NewNtfyHandler(topicURL, "", allEventKinds)
		if err := m.Register(h); err != nil {
			logger.LogWarning(h, err.Error())
		}
	}
}
