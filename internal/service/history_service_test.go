package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
	listErr error
}

func (m *memBlobs) Get(_ context.Context, p string) (io.ReadCloser, error) {
	data, ok := m.objects[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.BlobInfo
	for p, data := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *memBlobs) Exists(_ context.Context, p string) (bool, error) {
	_, ok := m.objects[p]
	return ok, nil
}

func TestHistoryListsRecords(t *testing.T) {
	records := &memRecords{}
	ctx := context.Background()
	_, err := records.Insert(ctx, domain.ResolutionRecord{ContractID: "c1", Status: domain.ResolutionSucceeded})
	require.NoError(t, err)
	_, err = records.Insert(ctx, domain.ResolutionRecord{ContractID: "c2", Status: domain.ResolutionFailed})
	require.NoError(t, err)

	svc := NewHistoryService(records, nil, discardLogger())
	got, err := svc.History(ctx, "c1", 0, -3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ContractID)

	got, err = svc.History(ctx, "nope", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHistoryArchives(t *testing.T) {
	rec := domain.ResolutionRecord{ContractID: "c1", Status: domain.ResolutionSucceeded, SubmittedAt: time.Unix(100, 0).UTC()}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	blobs := &memBlobs{objects: map[string][]byte{
		"resolutions/c1/a.json": data,
		"resolutions/c2/b.json": []byte("{}"),
	}}
	svc := NewHistoryService(&memRecords{}, blobs, discardLogger())
	ctx := context.Background()

	infos, err := svc.Archives(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "resolutions/c1/a.json", infos[0].Path)

	got, err := svc.Archived(ctx, "c1", "a.json")
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionSucceeded, got.Status)

	_, err = svc.Archived(ctx, "c1", "missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Archived(ctx, "c1", "../c2/b.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	blobs.listErr = errors.New("s3 down")
	_, err = svc.Archives(ctx, "c1")
	assert.ErrorContains(t, err, "s3 down")
}

func TestHistoryWithoutBlobStorage(t *testing.T) {
	svc := NewHistoryService(&memRecords{}, nil, discardLogger())
	infos, err := svc.Archives(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = svc.Archived(context.Background(), "c1", "a.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
