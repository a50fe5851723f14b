package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"discovery/pkg/interview"
	"discovery/pkg/metrics"
	"discovery/pkg/session"
)

func runSessions(ctx context.Context, args []string) error {
	var (
		common  commonFlags
		filter  session.Filter
		status  string
		since   time.Duration
		showAll bool
	)
	fs := newFlagSet("sessions", &common)
	fs.StringVar(&filter.UserID, "user", "", "Only sessions of this user")
	fs.StringVar(&filter.InterviewType, "type", "", "Only sessions of this archetype")
	fs.StringVar(&status, "status", "", "Only sessions in this status (active, paused, completed)")
	fs.DurationVar(&since, "since", 0, "Only sessions created within this duration")
	fs.IntVar(&filter.Limit, "limit", 20, "Maximum sessions to list (0 for all)")
	fs.IntVar(&filter.Offset, "offset", 0, "Sessions to skip")
	fs.BoolVar(&showAll, "workflows", true, "Also list adaptive runs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter.Status = interview.Status(status)
	if since > 0 {
		after := time.Now().Add(-since)
		filter.CreatedAfter = &after
	}

	a, err := setup(ctx, &common)
	if err != nil {
		return err
	}
	defer a.close()

	sessions, err := a.sessions.ListSessions(ctx, filter)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tUSER\tTYPE\tSTATUS\tSTEP\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.UserID, s.InterviewType, s.Status, s.CurrentStep, s.CreatedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !showAll || a.store == nil {
		return nil
	}
	runs, err := a.store.Workflows().List(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tDOMAIN\tPHASE\tEXCHANGES\tUPDATED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Domain, r.Phase, r.Exchanges, r.UpdatedAt, r.Error)
	}
	return w.Flush()
}

func runMetrics(ctx context.Context, args []string) error {
	var (
		common        commonFlags
		prometheusURL string
	)
	fs := newFlagSet("metrics", &common)
	fs.StringVar(&prometheusURL, "prometheus", "", "Prometheus server URL (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(&common)
	if err != nil {
		return err
	}
	if prometheusURL == "" {
		prometheusURL = cfg.Metrics.PrometheusURL
	}
	if prometheusURL == "" {
		return fmt.Errorf("no Prometheus URL configured, pass --prometheus or set metrics.prometheus_url")
	}

	qs, err := metrics.NewQueryService(prometheusURL, cfg.Metrics.Namespace)
	if err != nil {
		return err
	}
	totals, err := qs.InterviewTotals(ctx)
	if err != nil {
		return fmt.Errorf("failed to query interview totals: %w", err)
	}
	return printJSON(totals)
}
