package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/extract"
	"github.com/CamiloRuizJ/rexeli/internal/repository"
)

// BatchItem is one document in a batch extraction request.
type BatchItem struct {
	Input        extract.Input
	DocumentType constants.DocumentType
}

// BatchResult pairs an item's outcome with its position in the request.
type BatchResult struct {
	Index    int
	Document *repository.TrainingDocument
	Err      error
}

// ProcessBatch extracts every item with bounded concurrency. Results keep
// request order. Item failures are recorded per result, not returned; the
// batch itself only fails when the context is cancelled.
func (s *Service) ProcessBatch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	start := time.Now()
	results := make([]BatchResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{Index: i, Err: err}
				return err
			}
			doc, err := s.ExtractDocumentData(ctx, item.Input, item.DocumentType)
			results[i] = BatchResult{Index: i, Document: doc, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.log.Info("service.batch.done",
		"items", len(items),
		"failed", failed,
		"concurrency", s.batchLimit,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}
