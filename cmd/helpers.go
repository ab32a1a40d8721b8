package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/helvemed/meddiff/internal/fetcher"
	"github.com/helvemed/meddiff/internal/model"
	"github.com/helvemed/meddiff/internal/runlog"
	"github.com/helvemed/meddiff/internal/snapshot"
)

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Sources.UserAgent,
		Timeout:    time.Duration(cfg.Sources.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Sources.DownloadRetries,
	})
}

func todayLabel() string {
	return time.Now().Format(snapshot.DateLayout)
}

// openRunlog opens the run history database, or returns nil when history is
// disabled. Callers treat a nil log as a no-op.
func openRunlog() *runlog.Log {
	if cfg.Runlog.Disabled {
		return nil
	}
	l, err := runlog.Open(cfg.Runlog.Path)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return nil
	}
	return l
}

// recordRun wraps a diff invocation with run-history bookkeeping.
func recordRun(ctx context.Context, operation, oldLabel, newLabel string, fn func() (*runlog.Result, error)) error {
	l := openRunlog()
	if l == nil {
		_, err := fn()
		return err
	}
	defer l.Close()

	id, logErr := l.Start(ctx, operation, oldLabel, newLabel)
	if logErr != nil {
		zap.L().Warn("run history start failed", zap.Error(logErr))
	}

	result, err := fn()
	if logErr != nil {
		return err
	}
	if err != nil {
		if failErr := l.Fail(ctx, id, err); failErr != nil {
			zap.L().Warn("run history update failed", zap.Error(failErr))
		}
		return err
	}
	if compErr := l.Complete(ctx, id, result); compErr != nil {
		zap.L().Warn("run history update failed", zap.Error(compErr))
	}
	return nil
}

func changeSetResult(cs *model.ChangeSet, outputPath string) *runlog.Result {
	return &runlog.Result{
		Changes:    len(cs.Changes),
		PriceTies:  cs.PriceTieCount,
		OutputPath: outputPath,
	}
}
