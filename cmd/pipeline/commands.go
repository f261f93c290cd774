package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/f3peakcity/f3-bot/internal/adapters/source"
	service "github.com/f3peakcity/f3-bot/internal/app"
	"github.com/f3peakcity/f3-bot/internal/bootstrap"
	"github.com/f3peakcity/f3-bot/internal/config"
	"github.com/f3peakcity/f3-bot/internal/domain/quality"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
	"github.com/f3peakcity/f3-bot/pkg/logger"
)

// ErrFindings is returned by validate when a table fails its checks.
var ErrFindings = errors.New("reporting tables failed validation")

type cli struct {
	out        io.Writer
	configPath string
	cfg        *config.Config
	log        logger.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:          "pipeline",
		Short:        "Reshape stored backblasts into the reporting tables",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (overrides BACKBLAST_CONFIG)")

	root.AddCommand(c.runCmd(), c.validateCmd(), c.initDBCmd())
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	if c.configPath != "" {
		if err := os.Setenv("BACKBLAST_CONFIG", c.configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	l, err := logger.New(cmd.ErrOrStderr(), cfg.LogFormat)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	c.cfg, c.log = cfg, l
	return nil
}

func (c *cli) pipeline(res *bootstrap.Resources) *service.Pipeline {
	return service.NewPipeline(res.Store, res.Venues, res.Sink,
		service.WithTables(c.cfg.PersonTable, c.cfg.EventTable),
		service.WithTargetCategory(c.cfg.PipelineTargetCategory),
		service.WithDefaultVenue(c.cfg.PipelineDefaultVenue),
		service.WithPipelineLogger(c.log.Named("pipeline")))
}

func (c *cli) runCmd() *cobra.Command {
	var dryRun bool
	var table string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and replace both reporting tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			res, err := bootstrap.Open(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer res.Close()
			p := c.pipeline(res)

			if !dryRun {
				result, err := p.Run(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			_, tables, err := p.DryRun(ctx)
			if err != nil {
				return err
			}
			for _, t := range tables {
				if table != "" && t.Name != table {
					continue
				}
				if err := report.WriteCSV(c.out, t); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build the tables and print them as CSV without writing")
	cmd.Flags().StringVar(&table, "table", "", "with --dry-run, print only this table")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the written reporting tables against the data quality expectations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			res, err := bootstrap.Open(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer res.Close()

			var findings []quality.Finding
			for _, name := range []string{c.cfg.PersonTable, c.cfg.EventTable} {
				t, err := res.Tables.Table(ctx, name)
				if err != nil {
					return fmt.Errorf("read %s: %w", name, err)
				}
				got := quality.CheckTable(t)
				fmt.Fprintf(c.out, "%s: %d rows, %d findings\n", name, len(t.Rows), len(got))
				findings = append(findings, got...)
			}
			for _, f := range findings {
				fmt.Fprintln(c.out, f.String())
			}
			if len(findings) > 0 {
				return fmt.Errorf("%w: %d findings", ErrFindings, len(findings))
			}
			return nil
		},
	}
}

func (c *cli) initDBCmd() *cobra.Command {
	var venuesPath string
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the store schema and load the reference venue table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			// opening the store applies its schema
			store, err := bootstrap.OpenStore(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if venuesPath == "" {
				fmt.Fprintln(c.out, "schema ready")
				return nil
			}
			venues, err := source.NewFileVenues(venuesPath).Venues()
			if err != nil {
				return err
			}
			if err := store.UpsertVenues(ctx, venues); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "loaded %d venues\n", len(venues))
			return nil
		},
	}
	cmd.Flags().StringVar(&venuesPath, "venues", "", "YAML file with the reference venue table")
	return cmd
}
