package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/kyotei-predictor/internal/accuracy"
	"github.com/yourusername/kyotei-predictor/internal/datasource"
	"github.com/yourusername/kyotei-predictor/internal/models"
	"github.com/yourusername/kyotei-predictor/internal/venue"
)

func newRacesCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "races",
		Short: "List the races published for a day with their titles and closing times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				programs, err := a.fetcher.FetchDay(cmd.Context(), date)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(programs)
				}
				sortByClosing(programs)
				out := cmd.OutOrStdout()
				for _, p := range programs {
					printProgramLine(out, p)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "today", "Race day (YYYY-MM-DD, YYYYMMDD, today, tomorrow, yesterday)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show each recorded prediction for a day and whether it hit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				day, err := datasource.ResolveDate(date, a.fetcher.Now())
				if err != nil {
					return err
				}
				key := day.Format(models.DateLayout)

				outcomes, err := a.store.ByDate(cmd.Context(), key)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(outcomes)
				}
				out := cmd.OutOrStdout()
				if len(outcomes) == 0 {
					fmt.Fprintf(out, "no predictions for %s\n", key)
					return nil
				}
				for _, o := range outcomes {
					printOutcomeLine(out, o)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "yesterday", "Race day (YYYY-MM-DD, YYYYMMDD, today, tomorrow, yesterday)")
	return cmd
}

// closingTime extracts HH:MM from a "YYYY-MM-DD HH:MM:SS" closing timestamp.
func closingTime(closedAt string) string {
	fields := strings.Fields(closedAt)
	if len(fields) == 0 {
		return "--:--"
	}
	t := fields[len(fields)-1]
	if len(t) > 5 {
		t = t[:5]
	}
	return t
}

// sortByClosing orders programs by closing time, then venue and race.
func sortByClosing(programs []datasource.RaceProgram) {
	sort.SliceStable(programs, func(i, j int) bool {
		a, b := programs[i], programs[j]
		if a.ClosedAt != b.ClosedAt {
			return a.ClosedAt < b.ClosedAt
		}
		if a.VenueID != b.VenueID {
			return a.VenueID < b.VenueID
		}
		return a.RaceNumber < b.RaceNumber
	})
}

func printProgramLine(out io.Writer, p datasource.RaceProgram) {
	fmt.Fprintf(out, "%s  %-6s R%-2d  %s\n", closingTime(p.ClosedAt), venue.Name(p.VenueID), p.RaceNumber, p.Title)
}

func printOutcomeLine(out io.Writer, o accuracy.RaceOutcome) {
	p := o.Prediction
	actual := "-"
	if o.Record != nil {
		actual = joinInts(o.Record.ActualLanes, "-")
	}
	fmt.Fprintf(out, "%-6s R%-2d  %s  conf %.2f  actual %-7s %s\n",
		venue.Name(p.Key.VenueID), p.Key.RaceNumber,
		joinInts(p.RankedLanes[:3], "-"), p.Confidence, actual, o.Status())
}
