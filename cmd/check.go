/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/seckatie/urlhealth/internal/core/remote"
	"github.com/seckatie/urlhealth/internal/core/render"
	"github.com/seckatie/urlhealth/internal/core/view"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [url...]",
	Short: "Check URLs now and print the results",
	Long: `Ask the monitoring service to probe URLs and print the results.

URLs may be given as separate arguments or as one comma-separated list;
bare hosts get https:// prepended.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		err = runCheck(cmd.Context(), cmd.OutOrStdout(), newClient(cfg), strings.Join(args, ", "), terminalOptions(cfg.Dashboard.Locale))
		if err != nil {
			log.Fatalf("Check failed: %v", err)
		}
	},
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every URL known to the monitoring service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		historyID, err := cmd.Flags().GetString("history")
		if err != nil {
			log.Fatalf("Failed to read --history: %v", err)
		}
		err = runList(cmd.Context(), cmd.OutOrStdout(), newClient(cfg), remote.URLID(historyID), terminalOptions(cfg.Dashboard.Locale))
		if err != nil {
			log.Fatalf("List failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("history", "", "Also print the check history of this url_id")
}

// terminalOptions returns projection options for terminal output.
func terminalOptions(locale string) render.Options {
	opts := render.Options{Locale: render.DefaultLocale(), Location: time.Local}
	if locale != "" {
		opts.Locale = render.MatchLocale(locale)
	}
	return opts
}

// runCheck validates raw, checks the URLs and prints the resulting view.
func runCheck(ctx context.Context, out io.Writer, svc view.Service, raw string, opts render.Options) error {
	d := view.NewDispatcher(view.NewStore(), svc, nil)

	in, err := d.CheckURLs(ctx, raw)
	if err == nil {
		err = in.Wait()
	}
	return printSnapshot(out, d.Store().Snapshot(), opts, err)
}

// runList fetches every URL and, when historyID is set, its history.
func runList(ctx context.Context, out io.Writer, svc view.Service, historyID remote.URLID, opts render.Options) error {
	d := view.NewDispatcher(view.NewStore(), svc, nil)

	err := d.FetchAll(ctx).Wait()
	if err == nil && historyID != "" {
		err = d.ViewHistory(ctx, historyID).Wait()
	}
	return printSnapshot(out, d.Store().Snapshot(), opts, err)
}

// printSnapshot prints the projected view. When actionErr is set the
// error banner is returned as the error instead.
func printSnapshot(out io.Writer, snap view.Snapshot, opts render.Options, actionErr error) error {
	m := render.Project(snap.State, snap.Drilldown, opts)
	if actionErr != nil {
		if m.Error != "" {
			return errors.New(m.Error)
		}
		return actionErr
	}
	return printModel(out, m)
}

// printModel writes the results table and, if present, the history table.
func printModel(out io.Writer, m render.DisplayModel) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	if m.Header != "" {
		fmt.Fprintln(tw, m.Header)
	}
	if len(m.Rows) == 0 {
		fmt.Fprintln(tw, "No URLs.")
	} else {
		fmt.Fprintln(tw, "ID\tURL\tSTATUS\tRESPONSE TIME\tUPTIME\tLAST CHECKED\tWARNING")
		for _, r := range m.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\n",
				r.ID, r.URL, r.Status.Label, r.ResponseTime, r.Uptime, r.Date, r.Time, r.Warning)
		}
	}

	if h := m.History; h != nil {
		fmt.Fprintln(tw)
		if h.URL != "" {
			fmt.Fprintf(tw, "Check History: %s\n", h.URL)
		} else {
			fmt.Fprintf(tw, "Check History: url_id %s\n", h.ID)
		}
		fmt.Fprintln(tw, "STATUS\tRESPONSE TIME\tTIMESTAMP")
		for _, e := range h.Entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Status.Label, e.ResponseTime, e.Timestamp)
		}
	}
	return tw.Flush()
}
