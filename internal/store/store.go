// Package store persists enriched articles as JSON documents with merge-upsert semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nara-digital/newsingest/internal/article"
)

// Table holds one row per document.
const Table = "news_articles"

// DocumentStore writes a batch atomically. Existing fields missing from a new
// document are kept.
type DocumentStore interface {
	BatchUpsert(ctx context.Context, docs []Document) error
}

// PersistenceError means the batch was not written. It fails the run.
type PersistenceError struct {
	Count int
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %d documents: %v", e.Count, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// Writer turns enriched articles into documents and writes them in one batch.
type Writer struct {
	store  DocumentStore
	logger *slog.Logger
	now    func() time.Time
}

func NewWriter(s DocumentStore, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: s, logger: logger.With("component", "store"), now: time.Now}
}

// Persist issues exactly one batch upsert for a non-empty input.
func (w *Writer) Persist(ctx context.Context, items []article.Enriched) error {
	if len(items) == 0 {
		w.logger.Warn("nothing to persist")
		return nil
	}

	now := w.now()
	docs := make([]Document, 0, len(items))
	for _, it := range items {
		docs = append(docs, NewDocument(it, now))
	}

	if err := w.store.BatchUpsert(ctx, docs); err != nil {
		var pe *PersistenceError
		if errors.As(err, &pe) {
			return pe
		}
		return &PersistenceError{Count: len(docs), Cause: err}
	}

	w.logger.Info("batch persisted", "documents", len(docs))
	return nil
}
