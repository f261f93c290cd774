package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/f3peakcity/f3-bot/pkg/logger"
)

// Seed errors.
var (
	ErrUnhealthy   = errors.New("service is not healthy")
	ErrPipelineRun = errors.New("pipeline run failed")
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run checks the service, generates cfg.Count payloads, posts them and
// optionally triggers one pipeline run.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("seed")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("count", cfg.Count),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", int64(cfg.Seed))) //nolint:gosec // logging only

	if err := checkHealth(ctx, cfg); err != nil {
		return stats, err
	}

	payloads := NewGenerator(*cfg, time.Now()).Generate(cfg.Count)
	stats.Generated = len(payloads)

	submitAll(ctx, cfg, payloads, stats)

	if cfg.OutputFile != "" {
		if err := savePayloads(cfg.OutputFile, payloads); err != nil {
			log.Warn(ctx, "failed to save payloads", logger.Error(err))
		}
	}

	if cfg.RunPipeline {
		if err := triggerPipeline(ctx, cfg); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "seed run finished", logger.Duration("took", stats.Duration))
	return stats, nil
}

func checkHealth(ctx context.Context, cfg *Config) error {
	resp, err := newHTTPClient(cfg.Timeout).Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

func triggerPipeline(ctx context.Context, cfg *Config) error {
	resp, err := newHTTPClient(cfg.Timeout).Post(ctx, cfg.BaseURL+"/pipeline/run", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineRun, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrPipelineRun, resp.StatusCode, body)
	}
	logger.Get().Named("seed").Info(ctx, "pipeline run finished", logger.String("result", string(body)))
	return nil
}

func savePayloads(path string, payloads []Backblast) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, filePermission)
}
