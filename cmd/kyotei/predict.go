package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/service"
	"github.com/yourusername/kyotei-predictor/internal/venue"
)

func newPredictCmd() *cobra.Command {
	var (
		date    string
		all     bool
		dryRun  bool
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "predict [venue] [race]",
		Short: "Score and record a race, or every race of a day with --all",
		Example: `  kyotei predict 12 5 --date 2026-10-18
  kyotei predict suminoe 11 --dry-run --explain
  kyotei predict --all --date tomorrow`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if all {
					summary, err := a.service.PredictDate(cmd.Context(), date)
					if err != nil {
						return err
					}
					return printRunSummary(cmd, "Prediction run", summary)
				}

				v, err := venue.Parse(args[0])
				if err != nil {
					return err
				}
				raceNumber, err := strconv.Atoi(args[1])
				if err != nil || !venue.IsValidRaceNumber(raceNumber) {
					return fmt.Errorf("race number must be %d-%d, got %q", venue.MinRaceNumber, venue.MaxRaceNumber, args[1])
				}

				var p *models.Prediction
				if dryRun {
					p, err = a.service.ScoreRace(cmd.Context(), v.ID, raceNumber, date)
				} else {
					p, err = a.service.PredictRace(cmd.Context(), v.ID, raceNumber, date)
				}
				if errors.Is(err, service.ErrNoPrediction) {
					a.log.WithError(err).Warn("Race could not be scored")
					fmt.Fprintln(cmd.OutOrStdout(), "no prediction available")
					return nil
				}
				if err != nil {
					return err
				}

				if outputJSON {
					return printJSON(p)
				}
				printPrediction(cmd, v, p)

				if explain {
					return printExplain(cmd, a, v.ID, raceNumber, p.Key.Date)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "today", "Race date: today, tomorrow, YYYY-MM-DD or YYYYMMDD")
	cmd.Flags().BoolVar(&all, "all", false, "Predict every race published for the date")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Score without recording")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show per-lane factor breakdown")
	return cmd
}

func printPrediction(cmd *cobra.Command, v venue.Venue, p *models.Prediction) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (%s) R%d\n", p.Key.Date, v.Name, v.NameEn, p.Key.RaceNumber)
	fmt.Fprintf(out, "  ranking:    %s\n", joinInts(p.RankedLanes, " > "))
	fmt.Fprintf(out, "  win:        %d\n", p.RecommendedWin())
	fmt.Fprintf(out, "  place:      %s\n", joinInts(p.RecommendedPlace(), ", "))
	fmt.Fprintf(out, "  exacta:     %s\n", p.Exacta())
	fmt.Fprintf(out, "  trifecta:   %s\n", p.Trifecta())
	fmt.Fprintf(out, "  confidence: %.3f\n", p.Confidence)
}

func printExplain(cmd *cobra.Command, a *app, venueID, raceNumber int, date string) error {
	entries, err := a.fetcher.FetchProgram(cmd.Context(), venueID, raceNumber, date)
	if err != nil {
		return err
	}
	scores, err := a.engine.Explain(entries)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%-4s %-12s %8s %8s %8s %8s %8s %8s %9s\n",
		"Lane", "Racer", "National", "Local", "Motor", "Boat", "Start", "Other", "Composite")
	for _, s := range scores {
		fmt.Fprintf(out, "%-4d %-12s %8.3f %8.3f %8.3f %8.3f %8.3f %8.3f %9.4f\n",
			s.Lane, s.RacerName,
			s.Factors.NationalWinRate, s.Factors.LocalWinRate,
			s.Factors.Motor, s.Factors.Boat, s.Factors.StartTiming, s.Factors.Other,
			s.Composite)
	}
	return nil
}

func newReconcileCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match official results against pending predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				summary, err := a.service.ReconcileDate(cmd.Context(), date)
				if err != nil {
					return err
				}
				return printRunSummary(cmd, "Reconciliation run", summary)
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "today", "Race date: today, yesterday, YYYY-MM-DD or YYYYMMDD")
	return cmd
}

func printRunSummary(cmd *cobra.Command, title string, s *service.RunSummary) error {
	if outputJSON {
		return printJSON(s)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (%s)\n", title, s.Date, s.RunID)
	fmt.Fprintf(out, "  attempted: %d\n  recorded:  %d\n  existing:  %d\n  skipped:   %d\n  failed:    %d\n",
		s.Attempted, s.Recorded, s.Existing, s.Skipped, s.Failed)
	if s.Unmatched > 0 || s.WinHits > 0 {
		fmt.Fprintf(out, "  unmatched: %d\n  win hits:  %d\n", s.Unmatched, s.WinHits)
	}
	fmt.Fprintf(out, "  duration:  %s\n", s.Duration.Round(time.Millisecond))
	return nil
}

func joinInts(lanes []int, sep string) string {
	parts := make([]string, len(lanes))
	for i, l := range lanes {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, sep)
}
