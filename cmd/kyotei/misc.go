package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/kyotei-predictor/internal/venue"
)

func newVenuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "venues",
		Short: "List the 24 venues and their codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := venue.All()
			if outputJSON {
				return printJSON(all)
			}
			out := cmd.OutOrStdout()
			for _, v := range all {
				fmt.Fprintf(out, "%s  %-6s %-12s %s\n", v.Code(), v.Name, v.NameEn, v.Region)
			}
			return nil
		},
	}
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the program cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				stats := a.fetcher.CacheStats(cmd.Context())
				if outputJSON {
					return printJSON(stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "backend:  %s\n", a.cfg.Cache.Backend)
				fmt.Fprintf(out, "enabled:  %t\n", a.fetcher.CacheEnabled())
				fmt.Fprintf(out, "entries:  %d\n", stats.Entries)
				fmt.Fprintf(out, "ttl:      %.0fs\n", stats.TTLSeconds)
				fmt.Fprintf(out, "upstream: %s\n", a.fetcher.UpstreamState())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if err := a.fetcher.ClearCache(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
				return nil
			})
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kyotei %s (%s)\n", Version, GitCommit)
		},
	}
}
