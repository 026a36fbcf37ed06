package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinkscotty/podcaster/internal/feeds"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/scraper"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Fetch every configured source once and report what it yields",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(cfg.Sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured")
				return nil
			}

			collector := feeds.NewCollector(nil, ctx.logger)
			results := collector.FetchAll(cmd.Context(), cfg.Sources)

			rows := make([][]string, 0, len(results))
			for _, res := range results {
				status := "ok"
				if res.Err != nil {
					status = res.Err.Error()
					// An HTML page that fails as a listing may still advertise a feed.
					if feed, err := scraper.DiscoverFeed(cmd.Context(), res.Source.URL); err == nil && feed != "" {
						status += "; feed available at " + feed
					}
				}
				rows = append(rows, []string{
					res.Source.Name,
					formatOr(res.Source.Format, "rss"),
					strconv.Itoa(len(res.Items)),
					res.Duration.Round(time.Millisecond).String(),
					status,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Source", "Format", "Items", "Took", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "%d unique items after de-duplication\n", len(feeds.Dedupe(flatten(results))))
			return nil
		},
	}
}

func formatOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func flatten(results []feeds.SourceResult) []models.RawItem {
	var items []models.RawItem
	for _, res := range results {
		items = append(items, res.Items...)
	}
	return items
}
