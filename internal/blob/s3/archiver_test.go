package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

type memWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = b
	m.types[path] = contentType
	return nil
}

func (m *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, contentTypeJSONL)
}

type memLog struct {
	rows  []domain.ResolutionRecord
	paths map[int64]string
}

func (l *memLog) SetArchivePath(_ context.Context, id int64, path string) error {
	if l.paths == nil {
		l.paths = map[int64]string{}
	}
	l.paths[id] = path
	return nil
}

func (l *memLog) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.ResolutionRecord, error) {
	var out []domain.ResolutionRecord
	for _, r := range l.rows {
		if _, done := l.paths[r.ID]; done || !r.SubmittedAt.Before(before) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRecordPath(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "resolutions/c1/20250102T150405.000Z.json", RecordPath("c1", ts))
	assert.Equal(t, "resolutions/c1/", ContractPrefix("c1"))
}

func TestArchiveRecord(t *testing.T) {
	w := newMemWriter()
	log := &memLog{}
	a := NewArchiver(w, log, testLogger())

	rec := domain.ResolutionRecord{
		ID:          7,
		ContractID:  "c1",
		Status:      domain.ResolutionSucceeded,
		Request:     domain.ResolutionRequest{ContractID: "c1", Outcome: domain.LabelOutcome("CANCEL")},
		SubmittedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	path, err := a.ArchiveRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, contentTypeJSON, w.types[path])
	assert.Contains(t, string(w.objects[path]), `"outcome":"CANCEL"`)
	assert.Equal(t, path, log.paths[7])
}

func TestArchiveBeforeExportsUnarchivedRows(t *testing.T) {
	w := newMemWriter()
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	log := &memLog{rows: []domain.ResolutionRecord{
		{ID: 1, ContractID: "a", SubmittedAt: cutoff.Add(-48 * time.Hour)},
		{ID: 2, ContractID: "b", SubmittedAt: cutoff.Add(-time.Hour)},
		{ID: 3, ContractID: "c", SubmittedAt: cutoff.Add(time.Hour)},
	}}
	a := NewArchiver(w, log, testLogger())
	a.now = func() time.Time { return time.Unix(1700000000, 0) }

	n, err := a.ArchiveBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	path := "archive/resolutions/2025-02/1700000000-0.jsonl"
	require.Contains(t, w.objects, path)
	sc := bufio.NewScanner(bytes.NewReader(w.objects[path]))
	lines := 0
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
	assert.NotContains(t, log.paths, int64(3))

	n, err = a.ArchiveBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
}
