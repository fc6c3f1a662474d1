// Package search implements query normalization and execution against the
// message index.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
	"github.com/Aman-CERP/msgindex/internal/store"
)

// Messages reported inside a SearchResult.
const (
	MsgQueryRequired = "query required"
	MsgIndexNotReady = "index not ready"
	MsgSearchFailed  = "search error occurred"
)

// Reader gives read access to the open index without taking the mutation
// lock. *store.Guardian implements it.
type Reader interface {
	Read(fn func(idx bleve.Index) error) error
}

// Executor runs queries against fresh index snapshots.
type Executor struct {
	reader Reader
}

// NewExecutor creates an executor reading through r.
func NewExecutor(r Reader) *Executor {
	return &Executor{reader: r}
}

// Search executes rawQuery and returns at most maxResults hits.
// maxResults is trusted as already clamped by the caller.
// Failures are reported in SearchResult.Error; Search never returns an error.
func (e *Executor) Search(ctx context.Context, rawQuery string, maxResults int) store.SearchResult {
	if strings.TrimSpace(rawQuery) == "" {
		return store.SearchResult{Hits: []store.Hit{}, Error: MsgQueryRequired}
	}

	start := time.Now()
	normalized := Normalize(rawQuery)
	if normalized != rawQuery {
		slog.Debug("query_normalized",
			slog.String("query", rawQuery),
			slog.String("normalized", normalized))
	}

	var result store.SearchResult
	var parsedQuery string
	err := e.reader.Read(func(idx bleve.Index) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic during search: %v", r)
			}
		}()

		q, prepared, perr := Prepare(normalized)
		parsedQuery = prepared
		if perr != nil {
			synErr := msgerrors.QuerySyntaxError(perr.Error(), perr)
			slog.Info("query_syntax_error",
				slog.String("query", normalized),
				slog.String("error", synErr.Message))
			result = store.SearchResult{
				Hits:        []store.Hit{},
				Error:       fmt.Sprintf("invalid query: %s (query: %s)", synErr.Message, normalized),
				ParsedQuery: prepared,
			}
			return nil
		}

		req := bleve.NewSearchRequestOptions(q, maxResults, 0, false)
		req.Fields = []string{"*"}
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		result = materialize(res, prepared)
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotReady), errors.Is(err, msgerrors.ErrDisposed):
		return store.SearchResult{Hits: []store.Hit{}, Error: MsgIndexNotReady}
	default:
		readErr := msgerrors.IndexReadError("search failed", err)
		slog.Error("search_failed",
			append([]any{slog.String("query", normalized)}, msgerrors.LogAttrs(readErr)...)...)
		return store.SearchResult{Hits: []store.Hit{}, Error: MsgSearchFailed, ParsedQuery: parsedQuery}
	}

	if !result.Failed() {
		slog.Info("search_executed",
			slog.String("query", normalized),
			slog.Int("hits", len(result.Hits)),
			slog.Uint64("total", result.TotalHits),
			slog.Duration("took", time.Since(start)))
	}
	return result
}

func materialize(res *bleve.SearchResult, parsedQuery string) store.SearchResult {
	hits := make([]store.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		msg := store.Decode(h.Fields)
		if msg.ID == "" {
			msg.ID = h.ID
		}
		hits = append(hits, store.Hit{Score: h.Score, Message: msg})
	}
	return store.SearchResult{
		Hits:        hits,
		TotalHits:   res.Total,
		ParsedQuery: parsedQuery,
	}
}
