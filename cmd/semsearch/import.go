package main

import (
	"fmt"
	"os"

	"github.com/poiesic/semsearch"
	"github.com/poiesic/semsearch/pipeline"
	"github.com/poiesic/semsearch/storage"
	"github.com/urfave/cli/v2"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Load records from a YAML or JSON catalog file",
		ArgsUsage: "<file>",
		Action:    importAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "embed",
				Usage: "Embed the imported records right away",
			},
		},
	}
}

func importAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one catalog file")
	}
	path := c.Args().First()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	records, err := storage.LoadRecords(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg, semsearch.WithProgressWriter(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Import(c.Context, records); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Imported %d records from %s\n", len(records), path)

	if !c.Bool("embed") || len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	progress, err := engine.RunPipeline(c.Context, pipeline.ModeSpecific, ids)
	if progress != nil {
		printProgress(c.App.Writer, progress, false)
	}
	if err != nil {
		return fmt.Errorf("embedding generation failed: %w", err)
	}
	return nil
}
