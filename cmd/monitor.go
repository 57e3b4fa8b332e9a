/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/seckatie/urlhealth/internal/config"
	"github.com/seckatie/urlhealth/internal/core/db"
	"github.com/seckatie/urlhealth/internal/core/probe"
	"github.com/seckatie/urlhealth/internal/core/service"
	"github.com/seckatie/urlhealth/internal/metrics"
	"github.com/spf13/cobra"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitoring service the dashboard talks to",
	Long: `Run the monitoring HTTP API: it probes URLs on request, records every
check in a SQLite database and serves each URL's uptime and history.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMonitor(cmd); err != nil {
			log.Fatalf("Monitor failed: %v", err)
		}
	},
}

// runMonitor is the main function for the monitor command.
func runMonitor(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyMonitorFlags(cmd, cfg); err != nil {
		return err
	}

	database, err := initDB(cfg.Monitor.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prober, closeProber, err := newProber(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeProber()

	reg := metrics.NewRegistry()
	service.ObserveChecks(database, reg)
	database.RegisterEventListener(db.OnURLCreatedEvent, func(event db.Event) error {
		ev, ok := event.(db.URLCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}
		log.Printf("Now monitoring %d - %s", ev.URL.ID, ev.URL.URL)
		return nil
	})

	pool := probe.NewPool(prober, cfg.Monitor.Workers)
	service.StartServer(cfg.Monitor.Addr, service.NewServer(database, pool, reg))
	return nil
}

// applyMonitorFlags copies explicitly set monitor flags into cfg.
func applyMonitorFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if err := overrideString(cmd, "addr", &cfg.Monitor.Addr); err != nil {
		return err
	}
	if err := overrideString(cmd, "db", &cfg.Monitor.DB); err != nil {
		return err
	}
	if flags.Changed("workers") {
		n, err := flags.GetInt("workers")
		if err != nil {
			return fmt.Errorf("failed to read --workers: %w", err)
		}
		cfg.Monitor.Workers = n
	}
	if flags.Changed("probe-timeout") {
		d, err := flags.GetDuration("probe-timeout")
		if err != nil {
			return fmt.Errorf("failed to read --probe-timeout: %w", err)
		}
		cfg.Monitor.ProbeTimeout = d
	}
	if flags.Changed("browser") {
		b, err := flags.GetBool("browser")
		if err != nil {
			return fmt.Errorf("failed to read --browser: %w", err)
		}
		cfg.Monitor.Browser = b
	}
	if cfg.Monitor.Workers <= 0 {
		return fmt.Errorf("--workers must be positive")
	}
	return nil
}

// newProber returns the configured prober and a function releasing it.
func newProber(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (probe.Prober, func(), error) {
	if !cfg.Monitor.Browser {
		return probe.NewHTTPProber(cfg.Monitor.ProbeTimeout), func() {}, nil
	}

	chromePath, err := cmd.Flags().GetString("chrome-path")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read --chrome-path: %w", err)
	}
	headful, err := cmd.Flags().GetBool("headful")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read --headful: %w", err)
	}
	if chromePath == "" && runtime.GOOS == "darwin" {
		// Best-effort default for macOS.
		chromePath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	}

	b, err := probe.NewBrowserProber(ctx, probe.BrowserOptions{
		ChromePath: chromePath,
		Headless:   !headful,
		Timeout:    cfg.Monitor.ProbeTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	log.Println("Probing with headless Chrome")
	return b, b.Close, nil
}

func initDB(dbPath string) (*db.DB, error) {
	database, err := db.NewSQLiteDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migrated successfully")

	return database, nil
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringP("addr", "a", config.DefaultMonitorAddr, "Address to listen on")
	monitorCmd.Flags().StringP("db", "d", config.DefaultDBPath, "Path to the SQLite database file")
	monitorCmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Number of URLs probed concurrently per request")
	monitorCmd.Flags().Duration("probe-timeout", 0, "Per-URL probe timeout (default from config, 5s)")
	monitorCmd.Flags().Bool("browser", false, "Probe by loading pages in headless Chrome")
	monitorCmd.Flags().String("chrome-path", "", "Path to Chrome/Chromium executable")
	monitorCmd.Flags().Bool("headful", false, "Run Chrome with a visible window (not headless)")
}
