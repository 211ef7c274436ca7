package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/spend-insights/internal/app"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/dvloznov/spend-insights/internal/jobs/inmemory"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/pipeline"
	"github.com/rs/zerolog"
)

// The worker reads analysis inputs as JSON lines, one pipeline.Input per
// line, from stdin or -inputs and runs them on the in-memory job queue until
// the stream ends or the process is interrupted.
func main() {
	inputsPath := flag.String("inputs", "", "JSON-lines file of analysis inputs (default: stdin)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithOptions(cfg.Log.Level, cfg.Log.Format)

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	var in io.Reader = os.Stdin
	if *inputsPath != "" {
		f, err := os.Open(*inputsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open inputs")
		}
		defer f.Close()
		in = f
	}

	services, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire services")
	}
	defer services.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, jobStore,
		inmemory.WithWorkers(cfg.Jobs.Workers),
		inmemory.WithMaxRetries(cfg.Jobs.MaxRetries),
	)

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting worker service")
	if err := jobQueue.Start(ctx, jobs.NewAnalyzeHandler(services.PipelineDeps())); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	queued, err := consume(ctx, in, jobQueue, log)
	if err != nil {
		log.Error().Err(err).Msg("Reading inputs stopped")
	}

	if err := jobQueue.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("Interrupted before all jobs finished")
	}

	log.Info().Msg("Shutting down worker service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed, err := jobStore.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusFailed})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list failed jobs")
	}
	log.Info().Int("queued", queued).Int("failed", len(failed)).Msg("Worker service exited")
	if len(failed) > 0 {
		os.Exit(1)
	}
}

// consume publishes one job per input line and returns how many were queued.
// Malformed lines are logged and skipped.
func consume(ctx context.Context, r io.Reader, pub jobs.Publisher, log zerolog.Logger) (int, error) {
	queued := 0
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		if ctx.Err() != nil {
			return queued, ctx.Err()
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		input, err := parseInputLine(text)
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping input")
			continue
		}

		job := &jobs.AnalyzeJob{Input: input}
		if err := pub.PublishAnalyze(ctx, job); err != nil {
			return queued, fmt.Errorf("line %d: %w", line, err)
		}
		queued++
		log.Debug().Str("job_id", job.JobID).Str("source", input.Source).Msg("Queued analysis job")
	}
	return queued, sc.Err()
}

func parseInputLine(text string) (pipeline.Input, error) {
	var input pipeline.Input
	if err := json.Unmarshal([]byte(text), &input); err != nil {
		return pipeline.Input{}, fmt.Errorf("decoding input: %w", err)
	}
	if input.Source == "" {
		return pipeline.Input{}, fmt.Errorf("input has no source")
	}
	return input, nil
}
