package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/semsearch"
	"github.com/poiesic/semsearch/config"
	"github.com/poiesic/semsearch/pipeline"
	"github.com/urfave/cli/v2"
)

func embedCommand() *cli.Command {
	return &cli.Command{
		Name:   "embed",
		Usage:  "Generate embeddings for stored records",
		Action: embedAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Which records to embed (all, specific, outdated)",
				Value: string(pipeline.ModeAll),
			},
			&cli.StringSliceFlag{
				Name:  "ids",
				Usage: "Record ids to embed in specific mode",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Generate embeddings and report cost without saving them",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of records to process in each batch (overrides pipeline.batch_size)",
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Maximum attempts per record (overrides pipeline.max_retries)",
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Base delay between attempts (overrides pipeline.retry_delay)",
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show recent runs instead of starting one",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of runs shown by --status",
				Value: 10,
			},
		},
	}
}

func embedAction(c *cli.Context) error {
	mode, err := pipeline.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	ids := c.StringSlice("ids")
	if mode == pipeline.ModeSpecific && len(ids) == 0 {
		return fmt.Errorf("--ids is required with --mode specific")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.Int("batch-size"); v > 0 {
		cfg.Pipeline.BatchSize = v
	}
	if v := c.Int("max-retries"); v > 0 {
		cfg.Pipeline.MaxRetries = v
	}
	if c.IsSet("retry-delay") {
		cfg.Pipeline.RetryDelay = config.Duration(c.Duration("retry-delay"))
	}

	out := c.App.ErrWriter
	engine, err := openEngine(cfg,
		semsearch.WithProgressWriter(out),
		semsearch.WithDryRun(c.Bool("dry-run")),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("status") {
		return printRuns(ctx, c.App.Writer, engine, c.Int("limit"))
	}

	describe(out, cfg)
	if c.Bool("dry-run") {
		fmt.Fprintln(out, "Dry run: embeddings will not be saved")
	}

	progress, runErr := engine.RunPipeline(ctx, mode, ids)
	if progress != nil {
		printProgress(c.App.Writer, progress, c.Bool("dry-run"))
	}
	if runErr != nil {
		return fmt.Errorf("embedding generation failed: %w", runErr)
	}
	return nil
}

func printProgress(w io.Writer, p *pipeline.Progress, dryRun bool) {
	fmt.Fprintf(w, "Successful: %d  Failed: %d  Skipped: %d  Total: %d\n", p.Successful, p.Failed, p.Skipped, p.Total)
	label := "Cost"
	if dryRun {
		label = "Estimated cost"
	}
	fmt.Fprintf(w, "Tokens: %d  %s: $%.6f\n", p.Tokens, label, p.Cost)

	reported := p.ReportedFailures()
	if len(reported) == 0 {
		return
	}
	fmt.Fprintln(w, "Failures:")
	for _, f := range reported {
		fmt.Fprintf(w, "  %s: %s\n", f.RecordID, f.Error)
	}
	if more := len(p.Failures) - len(reported); more > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", more)
	}
}

func printRuns(ctx context.Context, w io.Writer, engine *semsearch.Engine, limit int) error {
	runs, err := engine.Runs().ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-8s %-9s total=%d ok=%d failed=%d skipped=%d cost=$%.6f duration=%v",
			r.StartedAt.Local().Format(time.DateTime), r.Mode, r.Status,
			r.Total, r.Successful, r.Failed, r.Skipped, r.Cost,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		if r.DryRun {
			fmt.Fprint(w, " (dry run)")
		}
		if r.Error != "" {
			fmt.Fprintf(w, " error=%q", r.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
