package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/semsearch/core"
	"github.com/urfave/cli/v2"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search stored records with a natural-language query",
		ArgsUsage: "<query>",
		Action:    searchAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of results to skip",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Minimum similarity between 0 and 1 (overrides search.default_threshold)",
			},
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Restrict results to a category (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "no-text",
				Usage: "Rank by vector similarity only",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "Show the score breakdown of each result",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full response as JSON",
			},
		},
	}
}

func searchAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	req := &core.SearchRequest{
		Query: query,
		Options: &core.SearchOptions{
			Limit:              c.Int("limit"),
			Offset:             c.Int("offset"),
			IncludeExplanation: c.Bool("explain"),
		},
	}
	if c.IsSet("threshold") {
		threshold := c.Float64("threshold")
		req.Options.Threshold = &threshold
	}
	if c.Bool("no-text") {
		text := false
		req.Options.IncludeTextSearch = &text
	}
	if categories := c.StringSlice("category"); len(categories) > 0 {
		req.Filters = &core.SearchFilters{Categories: categories}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// a one-shot process never hits the cache
	cfg.Cache.Enabled = false

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	resp, err := engine.Search().Search(c.Context, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResults(c.App.Writer, resp, c.Bool("explain"))
	return nil
}

func printResults(w io.Writer, resp *core.SearchResponse, explain bool) {
	meta := resp.QueryMetadata
	fmt.Fprintf(w, "%d results for %q (intent: %s, strategy: %s, %.1fms)\n\n",
		resp.TotalCount, meta.OriginalQuery, meta.Intent.Category, meta.Strategy, resp.Performance.TotalMs)

	if len(resp.Results) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tNAME\tCATEGORY\tSCORE\tSIMILARITY")
		for i, r := range resp.Results {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.4f\t%.4f\n",
				meta.Offset+i+1, r.RecordID, fieldString(r.Record, core.FieldName),
				fieldString(r.Record, core.FieldCategory), r.Score, r.Similarity)
		}
		tw.Flush()
	}

	if explain {
		for _, r := range resp.Results {
			if e := r.Explanation; e != nil {
				fmt.Fprintf(w, "\n%s: vector=%.4f text=%.4f entity=%.4f popularity=%.4f recency=%.4f",
					r.RecordID, e.VectorScore, e.TextScore, e.EntityBoost, e.PopularityBoost, e.RecencyBoost)
				if len(e.ExactMatches) > 0 {
					fmt.Fprintf(w, " exact=%s", strings.Join(e.ExactMatches, ","))
				}
				if len(e.PartialMatches) > 0 {
					fmt.Fprintf(w, " partial=%s", strings.Join(e.PartialMatches, ","))
				}
			}
		}
		fmt.Fprintln(w)
	}

	for _, s := range resp.Suggestions {
		fmt.Fprintf(w, "\nSuggestion: %s", s)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintln(w)
	}
}

func fieldString(record *core.Record, field string) string {
	if record == nil {
		return ""
	}
	v, ok := record.Value(field)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
