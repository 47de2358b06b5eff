package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/kyotei-predictor/internal/datasource"
	"github.com/yourusername/kyotei-predictor/internal/reporting"
)

func newSummaryCmd() *cobra.Command {
	var since, until string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show win, place and trifecta hit rates for a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				from, to, err := window(a, since, until)
				if err != nil {
					return err
				}
				s, err := a.store.GetSummary(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				report := reporting.NewReport(fmt.Sprintf("%s..%s", dayLabel(from), dayLabel(to)), *s)
				if outputJSON {
					return printJSON(report)
				}
				fmt.Fprint(cmd.OutOrStdout(), reporting.FormatConsole("Accuracy summary", report))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "First day of the window (default: all records)")
	cmd.Flags().StringVar(&until, "until", "", "Last day of the window, inclusive (default: now)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		days int
		by   string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show all-time and rolling accuracy, optionally broken down by day or venue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if by != "" && by != "daily" && by != "venue" {
				return fmt.Errorf("--by must be daily or venue, got %q", by)
			}
			return withApp(cmd.Context(), func(a *app) error {
				ctx := cmd.Context()
				all, err := a.reporter.AllTime(ctx)
				if err != nil {
					return err
				}
				rolling, err := a.reporter.Rolling(ctx, days)
				if err != nil {
					return err
				}
				reports := []reporting.Report{*all, *rolling}

				var breakdown []reporting.Report
				now := a.fetcher.Now()
				since := datasource.Midnight(now).AddDate(0, 0, -(days - 1))
				switch by {
				case "daily":
					breakdown, err = a.reporter.Daily(ctx, since, now)
				case "venue":
					breakdown, err = a.reporter.ByVenue(ctx, since, now)
				}
				if err != nil {
					return err
				}

				if outputJSON {
					return printJSON(map[string]interface{}{
						"summary":   reports,
						"breakdown": breakdown,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, reporting.FormatConsole("Prediction accuracy", reports...))
				if len(breakdown) > 0 {
					fmt.Fprintln(out)
					fmt.Fprint(out, reporting.FormatConsole(fmt.Sprintf("Last %d days by %s", days, by), breakdown...))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Rolling window length in days")
	cmd.Flags().StringVar(&by, "by", "", "Breakdown: daily or venue")
	return cmd
}

// window resolves --since/--until into a closed interval. until covers its whole day.
func window(a *app, since, until string) (time.Time, time.Time, error) {
	now := a.fetcher.Now()
	from := time.Unix(0, 0).UTC()
	to := now

	if since != "" {
		day, err := datasource.ResolveDate(since, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = day
	}
	if until != "" {
		day, err := datasource.ResolveDate(until, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--until %s is before --since %s", dayLabel(to), dayLabel(from))
	}
	return from, to, nil
}

func dayLabel(t time.Time) string {
	return t.In(datasource.JST).Format("2006-01-02")
}
