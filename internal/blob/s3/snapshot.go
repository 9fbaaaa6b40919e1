package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// ActiveMarkets supplies the markets written to a snapshot.
type ActiveMarkets interface {
	ListActive(ctx context.Context) ([]domain.Market, error)
}

// MarketSnapshotter implements domain.Snapshotter. It writes the active
// directory as JSONL and records the export in the audit log. Payloads
// larger than multipartThreshold go through the multipart uploader.
type MarketSnapshotter struct {
	writer             domain.BlobWriter
	markets            ActiveMarkets
	audit              domain.AuditStore
	prefix             string
	multipartThreshold int
}

// NewMarketSnapshotter creates a snapshotter writing under prefix
// (default "snapshots/markets"). audit may be nil.
func NewMarketSnapshotter(writer domain.BlobWriter, markets ActiveMarkets, audit domain.AuditStore, prefix string) *MarketSnapshotter {
	if prefix == "" {
		prefix = "snapshots/markets"
	}
	return &MarketSnapshotter{
		writer:             writer,
		markets:            markets,
		audit:              audit,
		prefix:             prefix,
		multipartThreshold: int(minPartSize),
	}
}

// SnapshotMarkets exports the active markets as of at.
func (s *MarketSnapshotter) SnapshotMarkets(ctx context.Context, at time.Time) (string, int, error) {
	markets, err := s.markets.ListActive(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: snapshot query: %w", err)
	}

	buf, err := marshalJSONL(markets)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: snapshot marshal: %w", err)
	}

	path := snapshotPath(s.prefix, at)
	if len(buf) > s.multipartThreshold {
		err = s.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = s.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: snapshot upload: %w", err)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, "snapshot.markets", map[string]any{
			"path":  path,
			"count": len(markets),
			"at":    at.UTC().Format(time.RFC3339),
		}); err != nil {
			return path, len(markets), fmt.Errorf("s3blob: snapshot audit log: %w", err)
		}
	}
	return path, len(markets), nil
}

var _ domain.Snapshotter = (*MarketSnapshotter)(nil)

// snapshotPath partitions snapshots by UTC date and time:
//
//	snapshots/markets/2026-10-16/153000.jsonl
func snapshotPath(prefix string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%s.jsonl", prefix, at.Format("2006-01-02"), at.Format("150405"))
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
