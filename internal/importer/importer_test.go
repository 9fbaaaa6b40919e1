package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pasarmalam/internal/clock"
	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLocks struct {
	mu       sync.Mutex
	held     bool
	released int
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.held = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.released++
	}, nil
}

type fakeBus struct {
	mu      sync.Mutex
	entries []domain.StreamMessage
}

func (b *fakeBus) Publish(context.Context, string, []byte) error { return nil }

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, domain.StreamMessage{ID: stream, Payload: payload})
	return nil
}

func (b *fakeBus) StreamRecent(_ context.Context, _ string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for i := len(b.entries) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, b.entries[i])
	}
	return out, nil
}

type fakeSyncer struct {
	got []domain.Market
	err error
}

func (s *fakeSyncer) SyncMarkets(_ context.Context, ms []domain.Market) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, ms...)
	return nil
}

type fakeBlobs struct {
	objects  map[string][]byte
	modified map[string]time.Time
}

func (b fakeBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b fakeBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for path, data := range b.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, domain.BlobInfo{Path: path, Size: int64(len(data)), LastModified: b.modified[path]})
		}
	}
	return out, nil
}

const datasetCSV = `name,address,district,state,operating_day,operating_hour,amenities,parking,latitude,longitude,total_shop
Pasar Malam Taman Connaught,Jalan Cerdas,Cheras,Kuala Lumpur,Rabu,5-11.30pm,"Toilet, Surau",Roadside,3.0797,101.7390,250
Pasar Malam Uptown,Jalan SS21,Petaling,Selangor,Sabtu,6-11pm,,,"3.1357, 101.6240",
,Jalan Tiada Nama,Klang,Selangor,Isnin,5-10pm,,,,
Pasar Malam Uptown,Jalan Damansara,Kota Damansara,Selangor,Selasa,petang,,,,
`

// steppingClock advances one second per reading.
func steppingClock(start time.Time) clock.Clock {
	var mu sync.Mutex
	now := start
	return clock.Func(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	})
}

type importerHarness struct {
	im     *Importer
	locks  *fakeLocks
	bus    *fakeBus
	syncer *fakeSyncer
}

func newImporterHarness(t *testing.T, src Source, opts Options) importerHarness {
	t.Helper()
	h := importerHarness{locks: &fakeLocks{}, bus: &fakeBus{}, syncer: &fakeSyncer{}}
	im, err := New(src, opts, h.syncer, h.locks, h.bus, nil, nil,
		steppingClock(time.Date(2026, 10, 16, 4, 0, 0, 0, time.UTC)), discardLogger())
	require.NoError(t, err)
	h.im = im
	return h
}

func writeDataset(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestRunImportsCSV(t *testing.T) {
	path := writeDataset(t, "markets.csv", datasetCSV)
	h := newImporterHarness(t, FileSource{Path: path}, Options{})

	report, err := h.im.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, path, report.Source)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, time.Second, report.Duration)

	ids := make([]string, len(h.syncer.got))
	for i, m := range h.syncer.got {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{
		"pasar-malam-taman-connaught",
		"pasar-malam-uptown",
		"pasar-malam-uptown-kota-damansara",
	}, ids)
	assert.Equal(t, 101.624, h.syncer.got[1].Location.Longitude)

	assert.Contains(t, report.Warnings, "row 4: missing name, row skipped")
	assert.Contains(t, report.Warnings, `row 5 (pasar-malam-uptown): unparseable hours "petang"`)
	assert.Contains(t, report.Warnings, `pasar-malam-uptown-kota-damansara: duplicate id "pasar-malam-uptown" renamed`)

	assert.Equal(t, 1, h.locks.released)
	reports, err := RecentReports(context.Background(), h.bus, 5)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, report.RunID, reports[0].RunID)
	assert.Equal(t, 3, reports[0].Imported)
}

func TestRunFromBlobSource(t *testing.T) {
	blobs := fakeBlobs{objects: map[string][]byte{"imports/markets.csv": []byte(datasetCSV)}}
	src, err := NewSource("s3://imports/markets.csv", blobs)
	require.NoError(t, err)
	assert.Equal(t, "s3://imports/markets.csv", src.Name())

	h := newImporterHarness(t, src, Options{})
	report, err := h.im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Imported)
}

func TestBlobPrefixReadsNewestObject(t *testing.T) {
	day := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	blobs := fakeBlobs{
		objects: map[string][]byte{
			"imports/":               {},
			"imports/2026-09-01.csv": []byte("name\nOld Market\n"),
			"imports/2026-10-01.csv": []byte(datasetCSV),
			"archive/2026-12-01.csv": []byte("name\nElsewhere\n"),
		},
		modified: map[string]time.Time{
			"imports/":               day.AddDate(1, 0, 0),
			"imports/2026-09-01.csv": day.AddDate(0, -1, 0),
			"imports/2026-10-01.csv": day,
			"archive/2026-12-01.csv": day.AddDate(0, 2, 0),
		},
	}
	src, err := NewSource("s3://imports/", blobs)
	require.NoError(t, err)

	h := newImporterHarness(t, src, Options{Format: "csv"})
	report, err := h.im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Imported)

	_, err = BlobSource{Blobs: blobs, Key: "missing/"}.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunJSONLRestore(t *testing.T) {
	path := writeDataset(t, "snapshot.jsonl",
		`{"id":"a","name":"A","address":"x","district":"d","state":"Johor","status":"Active","schedule":[{"days":["sat"],"times":[{"start":"17:00","end":"22:00"}]}]}
{"id":"b","name":"B","status":"Active","schedule":[]}
`)
	h := newImporterHarness(t, FileSource{Path: path}, Options{})
	report, err := h.im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Contains(t, report.Warnings, "row 2 (b): schedule is empty")
}

func TestRunLockHeld(t *testing.T) {
	path := writeDataset(t, "markets.csv", datasetCSV)
	h := newImporterHarness(t, FileSource{Path: path}, Options{})
	h.locks.held = true

	_, err := h.im.Run(context.Background())
	assert.True(t, errors.Is(err, domain.ErrLockHeld))
	assert.Empty(t, h.bus.entries, "no report for a run that never started")
	assert.Empty(t, h.syncer.got)
}

func TestRunRecordsFailures(t *testing.T) {
	path := writeDataset(t, "markets.csv", datasetCSV)
	h := newImporterHarness(t, FileSource{Path: path}, Options{})
	h.syncer.err = errors.New("db down")

	report, err := h.im.Run(context.Background())
	require.Error(t, err)
	assert.False(t, report.OK())
	assert.Contains(t, report.Error, "db down")
	assert.Equal(t, 0, report.Imported)
	require.Len(t, h.bus.entries, 1)

	h = newImporterHarness(t, FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}, Options{})
	report, err = h.im.Run(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, 1, h.locks.released)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(FileSource{Path: "markets.json"}, Options{}, &fakeSyncer{}, &fakeLocks{}, &fakeBus{}, nil, nil, nil, discardLogger())
	assert.True(t, errors.Is(err, domain.ErrUnsupportedSource))

	_, err = NewSource("s3://markets.csv", nil)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedSource))
}

func TestRunLoopWithoutIntervalRunsOnce(t *testing.T) {
	path := writeDataset(t, "markets.csv", datasetCSV)
	h := newImporterHarness(t, FileSource{Path: path}, Options{})
	require.NoError(t, h.im.RunLoop(context.Background(), 0))
	assert.Len(t, h.bus.entries, 1)
}
