package store

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
)

// segmentSnapshot is implemented by scorch index readers.
type segmentSnapshot interface {
	Segments() []*scorch.SegmentSnapshot
}

// Stats computes index statistics from a fresh reader snapshot.
// It returns zero stats when no index is open and UnavailableStats when the
// engine fails; it never returns an error.
func (g *Guardian) Stats() IndexStats {
	var stats IndexStats
	err := g.Read(func(idx bleve.Index) error {
		var err error
		stats, err = readStats(idx)
		return err
	})

	switch {
	case err == nil:
		return stats
	case errors.Is(err, ErrNotReady), errors.Is(err, msgerrors.ErrDisposed):
		return IndexStats{}
	default:
		slog.Warn("index_stats_failed", slog.String("error", err.Error()))
		return UnavailableStats
	}
}

func readStats(idx bleve.Index) (IndexStats, error) {
	adv, err := idx.Advanced()
	if err != nil {
		return IndexStats{}, fmt.Errorf("access engine: %w", err)
	}
	reader, err := adv.Reader()
	if err != nil {
		return IndexStats{}, fmt.Errorf("open reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	var stats IndexStats
	if snapshot, ok := reader.(segmentSnapshot); ok {
		segments := snapshot.Segments()
		stats.NumSegments = len(segments)
		for _, seg := range segments {
			stats.NumDocs += int64(seg.Count())
			stats.MaxDocs += seg.FullSize()
		}
	} else {
		count, err := reader.DocCount()
		if err != nil {
			return IndexStats{}, fmt.Errorf("count documents: %w", err)
		}
		stats.NumDocs = int64(count)
		stats.MaxDocs = int64(count)
		stats.NumSegments = 1
	}

	stats.IsOptimized = stats.NumSegments <= 1
	return stats, nil
}
