package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/app"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/gcsuploader"
	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/dvloznov/spend-insights/internal/jobs/inmemory"
	"github.com/dvloznov/spend-insights/internal/pipeline"
)

func runAnalyze(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	input := fs.String("input", "", "Transaction export: local JSON/CSV path, gs:// URI, or 'bigquery'")
	userID := fs.String("user", "", "User ID (required for -input bigquery)")
	from := fs.String("from", "", "First day to load from BigQuery (YYYY-MM-DD)")
	to := fs.String("to", "", "Last day to load from BigQuery (YYYY-MM-DD)")
	output := fs.String("output", "", "Write the report to this path or gs:// URI instead of stdout")
	fs.Parse(args)

	if *input == "" {
		return fmt.Errorf("-input is required")
	}

	in := pipeline.Input{Source: *input, UserID: *userID, Output: *output}
	var err error
	if in.From, err = parseDateFlag("from", *from); err != nil {
		return err
	}
	if in.To, err = parseDateFlag("to", *to); err != nil {
		return err
	}

	log := commandLogger(ctx, "analyze")
	return withServices(ctx, cfg, func(s *app.Services) error {
		log.Info().Str("input", in.Source).Msg("Starting analysis")

		report, err := pipeline.Analyze(ctx, s.PipelineDeps(), in)
		if err != nil {
			return err
		}

		log.Info().
			Int("subscriptions", len(report.Subscriptions)).
			Int("flags", len(report.WastefulExpenses)).
			Str("savings", report.TotalMonthlySavings.String()).
			Msg("Analysis completed")

		if in.Output != "" {
			fmt.Printf("Report %s written to %s\n", report.ReportID, in.Output)
			return nil
		}
		return printJSON(report)
	})
}

func runBatch(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	list := fs.String("inputs", "", "File listing one input per line (default: remaining arguments)")
	outDir := fs.String("output-dir", "", "Directory or gs:// prefix for reports (default: gs://<storage.bucket>/reports when a bucket is set)")
	userID := fs.String("user", "", "User ID recorded on every report")
	fs.Parse(args)

	inputs := fs.Args()
	if *list != "" {
		fromFile, err := readLines(*list)
		if err != nil {
			return err
		}
		inputs = append(inputs, fromFile...)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs given")
	}

	prefix := *outDir
	if prefix == "" && cfg.Storage.Bucket != "" {
		prefix = "gs://" + cfg.Storage.Bucket + "/reports"
	}

	log := commandLogger(ctx, "batch")
	return withServices(ctx, cfg, func(s *app.Services) error {
		store := inmemory.NewStore()
		queue := inmemory.NewQueue(cfg.Jobs.BufferSize, store,
			inmemory.WithWorkers(cfg.Jobs.Workers),
			inmemory.WithMaxRetries(cfg.Jobs.MaxRetries),
		)
		if err := queue.Start(ctx, jobs.NewAnalyzeHandler(s.PipelineDeps())); err != nil {
			return err
		}
		defer queue.Close()

		for _, src := range inputs {
			job := &jobs.AnalyzeJob{Input: pipeline.Input{
				Source: src,
				UserID: *userID,
				Output: reportPath(prefix, src),
			}}
			if err := queue.PublishAnalyze(ctx, job); err != nil {
				return fmt.Errorf("queueing %s: %w", src, err)
			}
			log.Debug().Str("job_id", job.JobID).Str("input", src).Msg("Queued analysis job")
		}

		if err := queue.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for jobs: %w", err)
		}

		all, err := store.ListJobs(ctx, jobs.JobFilter{})
		if err != nil {
			return err
		}
		failed := 0
		for _, j := range all {
			if j.Status == jobs.JobStatusFailed {
				failed++
			}
		}
		log.Info().Int("jobs", len(all)).Int("failed", failed).Msg("Batch completed")

		if err := printJSON(all); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d jobs failed", failed, len(all))
		}
		return nil
	})
}

func runImport(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	input := fs.String("input", "", "Transaction export: local JSON/CSV path or gs:// URI")
	userID := fs.String("user", "", "User ID owning the transactions")
	fs.Parse(args)

	if *input == "" || *userID == "" {
		return fmt.Errorf("-input and -user are required")
	}

	return withServices(ctx, cfg, func(s *app.Services) error {
		if s.BigQuery == nil {
			return fmt.Errorf("import needs bigquery.project_id")
		}
		txs, err := pipeline.Import(ctx, s.PipelineDeps(), pipeline.Input{Source: *input, UserID: *userID})
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d transactions for %s\n", len(txs), *userID)
		return nil
	})
}

// reportPath names a batch report after its input file.
func reportPath(prefix, src string) string {
	if prefix == "" {
		return ""
	}
	name := src
	if gcsuploader.IsGCSURI(src) {
		name = gcsuploader.ExtractFilenameFromGCSURI(src)
	}
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	return strings.TrimSuffix(prefix, "/") + "/" + base + ".report.json"
}

func readLines(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return lines, nil
}

func parseDateFlag(name, v string) (civil.Date, error) {
	if v == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, fmt.Errorf("-%s: %w", name, err)
	}
	return d, nil
}
