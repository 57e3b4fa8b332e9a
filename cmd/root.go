/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/seckatie/urlhealth/internal/config"
	"github.com/seckatie/urlhealth/internal/core/logo"
	"github.com/seckatie/urlhealth/internal/core/remote"
	"github.com/seckatie/urlhealth/internal/core/web"
	"github.com/seckatie/urlhealth/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// providerDisabled turns off the logo provider step when used as dashboard.logo.provider.
const providerDisabled = "none"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "urlhealth",
	Short: "Dashboard for checking whether URLs are up",
	Long: `urlhealth serves a web dashboard for a URL monitoring service.

Enter URLs to have the service probe them, list every URL the service has
seen, and drill into the check history of one URL. The dashboard talks to
the service configured with --api-url; run "urlhealth monitor" to start the
bundled service.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, configPath, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if err := overrideString(cmd, "addr", &cfg.Dashboard.Addr); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := newClient(cfg)
		reg := metrics.NewRegistry()

		ws, err := web.NewServer(web.Options{
			Service:    client,
			Recorder:   metrics.NewActionRecorder(reg),
			Logos:      newLogoResolver(cfg),
			Metrics:    reg,
			Locale:     cfg.Dashboard.Locale,
			SessionTTL: cfg.Dashboard.SessionTTL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize web server: %v", err)
		}

		// Only the service base URL is applied on reload; everything else
		// needs a restart.
		if configPath != "" {
			go func() {
				if err := config.Watch(ctx, configPath, func(c *config.Config) {
					if c.Dashboard.APIURL != client.BaseURL() {
						log.Printf("Monitoring service changed to %s", c.Dashboard.APIURL)
						client.SetBaseURL(c.Dashboard.APIURL)
					}
				}); err != nil {
					log.Printf("Config watch stopped: %v", err)
				}
			}()
		}

		log.Printf("Using monitoring service at %s", client.BaseURL())
		web.StartServer(ctx, cfg.Dashboard.Addr, ws)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("api-url", config.DefaultAPIURL, "Base URL of the monitoring service")
	rootCmd.PersistentFlags().String("locale", "", "Display locale, e.g. en-GB (default: negotiated per browser)")
	rootCmd.Flags().StringP("addr", "a", config.DefaultDashboardAddr, "Address to listen on")
}

// loadConfig loads the config file named by --config and applies any flags
// set on the command line on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", fmt.Errorf("failed to read --config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	overrides := []struct {
		flag  string
		value *string
	}{
		{"api-url", &cfg.Dashboard.APIURL},
		{"locale", &cfg.Dashboard.Locale},
	}
	for _, o := range overrides {
		if err := overrideString(cmd, o.flag, o.value); err != nil {
			return nil, "", err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// overrideString sets *dst from the named flag when it was set explicitly.
// Flags the command does not define are ignored.
func overrideString(cmd *cobra.Command, name string, dst *string) error {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return fmt.Errorf("failed to read --%s: %w", name, err)
	}
	*dst = v
	return nil
}

func newClient(cfg *config.Config) *remote.Client {
	return remote.NewClient(cfg.Dashboard.APIURL, &http.Client{Timeout: cfg.Dashboard.ClientTimeout})
}

func newLogoResolver(cfg *config.Config) *logo.Resolver {
	opts := logo.DefaultOptions()
	opts.Provider = cfg.Dashboard.Logo.Provider
	if opts.Provider == providerDisabled {
		opts.Provider = ""
	}
	opts.Rate = rate.Limit(cfg.Dashboard.Logo.Rate)
	opts.Burst = cfg.Dashboard.Logo.Burst
	opts.CacheTTL = cfg.Dashboard.Logo.CacheTTL
	return logo.NewResolver(opts)
}
