// Command seed posts generated backblasts to a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/f3peakcity/f3-bot/internal/seed"
	"github.com/f3peakcity/f3-bot/pkg/logger"
)

// Default configuration constants.
const (
	defaultCount       = 200
	defaultDays        = 28
	defaultPeople      = 60
	defaultRepeatRatio = 0.05
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		count       = flag.Int("count", defaultCount, "Number of backblasts to submit")
		days        = flag.Int("days", defaultDays, "Spread event dates over this many past days")
		people      = flag.Int("people", defaultPeople, "Roster size")
		venues      = flag.String("venues", "1stf", "Comma separated venue labels")
		repeat      = flag.Float64("repeat", defaultRepeatRatio, "Share of submissions resent under an existing id")
		seedValue   = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed") //nolint:gosec // non-negative
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		runPipeline = flag.Bool("run-pipeline", false, "Trigger one pipeline run after submitting")
		output      = flag.String("output", "", "Save generated payloads to this JSON file")
		logFormat   = flag.String("log-format", logger.FormatText, "Log format: text or json")
	)
	flag.Parse()

	if err := logger.InitWithFormat(*logFormat); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := seed.Run(ctx, &seed.Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Count:       *count,
		Days:        *days,
		People:      *people,
		Venues:      strings.Split(*venues, ","),
		RepeatRatio: *repeat,
		Seed:        *seedValue,
		Workers:     *workers,
		Timeout:     *timeout,
		RunPipeline: *runPipeline,
		OutputFile:  *output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		os.Exit(1)
	}
	fmt.Printf("generated %d, accepted %d, duplicates %d, failed %d in %s\n",
		stats.Generated, stats.Accepted, stats.Duplicates, stats.Failed, stats.Duration.Round(time.Millisecond))
}
