package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pipetakeoff/internal/async"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
)

// JobHandler lets a worker queue ingest watched files.
func (s *Service) JobHandler() async.Handler {
	return async.HandlerFunc(func(ctx context.Context, job async.Job) error {
		ctx = common.WithRequestID(ctx, job.TraceID)
		_, err := s.IngestFile(ctx, job.Path)
		return err
	})
}

// Feed forwards watcher events to q until events closes or ctx ends.
func Feed(ctx context.Context, events <-chan string, errs <-chan error, q async.Queue, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("hotfolder.watch_error", "error", err)
		case path, ok := <-events:
			if !ok {
				return
			}
			job := async.Job{Path: path, TraceID: uuid.NewString()}
			if err := q.Enqueue(ctx, job); err != nil {
				logger.Error("hotfolder.enqueue_failed", "path", path, "error", err)
				continue
			}
			logger.Info("hotfolder.queued", "path", path, "trace_id", job.TraceID)
		}
	}
}
