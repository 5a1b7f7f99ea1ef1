package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/monitoring"
	"github.com/sells-group/credit-scorer/internal/scoring"
	"github.com/sells-group/credit-scorer/internal/store"
)

var applicationsCmd = &cobra.Command{
	Use:     "applications",
	Aliases: []string{"apps"},
	Short:   "Inspect scored applications",
	Long:    "Commands for listing, viewing, and summarizing persisted applications.",
}

// -- applications list --

var applicationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scored applications, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := listFilterFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		apps, err := st.ListApplications(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "applications list")
		}

		if len(apps) == 0 {
			fmt.Fprintln(os.Stderr, "No applications found.")
			return nil
		}

		formatApplicationsList(os.Stdout, apps)
		return nil
	},
}

// -- applications show --

var applicationsShowCmd = &cobra.Command{
	Use:   "show <application-id>",
	Short: "Show the full result of an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		app, err := st.GetApplication(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "applications show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(app)
		}

		formatApplication(os.Stdout, app)
		return nil
	},
}

// -- applications stats --

var applicationsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recent applications and evaluate alert thresholds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		hours := int(since.Hours())
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "applications stats")
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		formatSnapshot(os.Stdout, snap, alerts)

		if send, _ := cmd.Flags().GetBool("send-alerts"); send && len(alerts) > 0 {
			sent := alerter.SendAlerts(ctx, alerts)
			fmt.Fprintf(os.Stderr, "%d of %d alerts delivered\n", sent, len(alerts))
		}
		return nil
	},
}

func init() {
	addListFlags(applicationsListCmd.Flags())

	applicationsShowCmd.Flags().Bool("json", false, "print the raw application as JSON")

	applicationsStatsCmd.Flags().Duration("since", 0, "time window (default monitoring.lookback_window_hours)")
	applicationsStatsCmd.Flags().Bool("send-alerts", false, "deliver triggered alerts to the configured webhook")

	applicationsCmd.AddCommand(applicationsListCmd)
	applicationsCmd.AddCommand(applicationsShowCmd)
	applicationsCmd.AddCommand(applicationsStatsCmd)
	rootCmd.AddCommand(applicationsCmd)
}

// initStore opens the configured store. A disabled store is an error for
// commands that only read applications.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if st == nil {
		return nil, eris.New("store disabled (store.driver is none)")
	}
	return st, nil
}

func addListFlags(f *pflag.FlagSet) {
	f.String("tier", "", "filter by risk tier (low, medium, high)")
	f.Bool("degraded", false, "filter by degraded (rule-only) results")
	f.Duration("since", 0, "only applications newer than this (e.g. 24h)")
	f.Int("limit", store.DefaultListLimit, "max number of applications to display")
	f.Int("offset", 0, "number of applications to skip")
}

func listFilterFromFlags(f *pflag.FlagSet) (store.ListFilter, error) {
	tier, _ := f.GetString("tier")
	limit, _ := f.GetInt("limit")
	offset, _ := f.GetInt("offset")
	since, _ := f.GetDuration("since")

	filter := store.ListFilter{Limit: limit, Offset: offset}
	switch model.RiskTier(tier) {
	case "":
	case model.RiskLow, model.RiskMedium, model.RiskHigh:
		filter.Tier = model.RiskTier(tier)
	default:
		return filter, eris.Errorf("unknown tier %q (want low, medium or high)", tier)
	}
	if f.Changed("degraded") {
		d, _ := f.GetBool("degraded")
		filter.Degraded = &d
	}
	if since > 0 {
		filter.CreatedAfter = time.Now().Add(-since)
	}
	return filter, nil
}

// formatApplicationsList writes a tabular list of applications to out.
func formatApplicationsList(out io.Writer, apps []model.ApplicationSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSCORE\tTIER\tDEGRADED\tCREATED")
	for _, a := range apps {
		id := a.ID
		if len(id) > 8 {
			id = id[:8]
		}
		degraded := ""
		if a.Degraded {
			degraded = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			id, a.Name, a.Score, a.Tier, degraded, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

// formatApplication writes the header and explanation of one application.
func formatApplication(out io.Writer, app *model.Application) {
	_, _ = fmt.Fprintf(out, "Application %s\n", app.ID)
	_, _ = fmt.Fprintf(out, "Applicant:   %s\n", app.Profile.DisplayName())
	_, _ = fmt.Fprintf(out, "Scored at:   %s\n", app.CreatedAt.Format(time.RFC3339))
	if app.Result.ModelVersion != "" {
		_, _ = fmt.Fprintf(out, "Model:       %s\n", app.Result.ModelVersion)
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, scoring.RenderExplanation(app.Result))
}

// formatSnapshot writes aggregate statistics and any triggered alerts.
func formatSnapshot(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	_, _ = fmt.Fprintf(out, "Applications (last %dh): %d\n", snap.LookbackHours, snap.Total)
	if snap.Total == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "  Low:      %d\n", snap.Low)
	_, _ = fmt.Fprintf(out, "  Medium:   %d\n", snap.Medium)
	_, _ = fmt.Fprintf(out, "  High:     %d (%.1f%%)\n", snap.High, snap.HighRiskRate*100)
	_, _ = fmt.Fprintf(out, "  Degraded: %d (%.1f%%)\n", snap.Degraded, snap.DegradedRate*100)
	_, _ = fmt.Fprintf(out, "  Average score: %.1f\n", snap.AvgScore)

	if len(alerts) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Alerts:")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "  [%s] %s\n", a.Severity, a.Message)
	}
}
