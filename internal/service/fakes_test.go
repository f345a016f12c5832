package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/email"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memContracts struct {
	mu       sync.Mutex
	byID     map[string]domain.Contract
	hot      []domain.Contract
	listErr  error
	upserts  int
	getCalls int
}

func newMemContracts(cs ...domain.Contract) *memContracts {
	m := &memContracts{byID: make(map[string]domain.Contract)}
	for _, c := range cs {
		m.byID[c.ID] = c
	}
	return m
}

func (m *memContracts) Upsert(_ context.Context, c domain.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	m.upserts++
	return nil
}

func (m *memContracts) GetByID(_ context.Context, id string) (domain.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	c, ok := m.byID[id]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *memContracts) GetBySlug(_ context.Context, slug string) (domain.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Slug == slug {
			return c, nil
		}
	}
	return domain.Contract{}, domain.ErrNotFound
}

func (m *memContracts) ListAll(_ context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Contract
	for _, c := range m.byID {
		out = append(out, c)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memContracts) ListHot(_ context.Context, _ int) ([]domain.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hot, nil
}

type memContractCache struct {
	mu          sync.Mutex
	byID        map[string]domain.Contract
	invalidated []string
}

func newMemContractCache() *memContractCache {
	return &memContractCache{byID: make(map[string]domain.Contract)}
}

func (m *memContractCache) Set(_ context.Context, c domain.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	return nil
}

func (m *memContractCache) Get(_ context.Context, id string) (domain.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *memContractCache) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	m.invalidated = append(m.invalidated, id)
	return nil
}

type fakeContractAPI struct {
	contracts map[string]domain.Contract
	calls     int
}

func (f *fakeContractAPI) GetContract(_ context.Context, id string) (domain.Contract, error) {
	f.calls++
	c, ok := f.contracts[id]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

type memUsers struct {
	mu      sync.Mutex
	users   map[string]domain.User
	private map[string]domain.PrivateUser
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]domain.User), private: make(map[string]domain.PrivateUser)}
}

func (m *memUsers) Upsert(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpsertPrivate(_ context.Context, p domain.PrivateUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.private[p.ID] = p
	return nil
}

func (m *memUsers) GetPrivate(_ context.Context, id string) (domain.PrivateUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.private[id]
	if !ok {
		return domain.PrivateUser{}, domain.ErrNotFound
	}
	return p, nil
}

type memUserCache struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memUserCache) Set(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]domain.User)
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUserCache) Get(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type fakeUserAPI struct {
	users map[string]domain.User
}

func (f *fakeUserAPI) GetUser(_ context.Context, id string) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type memComments struct {
	comments []domain.Comment
	err      error
}

func (m *memComments) Insert(_ context.Context, c domain.Comment) error {
	m.comments = append(m.comments, c)
	return nil
}

func (m *memComments) ListRecent(_ context.Context, limit int) ([]domain.Comment, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.comments) > limit {
		return m.comments[:limit], nil
	}
	return m.comments, nil
}

type memHomeCache struct {
	mu   sync.Mutex
	feed *domain.HomeFeed
	ttl  time.Duration
}

func (m *memHomeCache) Set(_ context.Context, feed domain.HomeFeed, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feed, m.ttl = &feed, ttl
	return nil
}

func (m *memHomeCache) Get(_ context.Context) (domain.HomeFeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feed == nil {
		return domain.HomeFeed{}, domain.ErrNotFound
	}
	return *m.feed, nil
}

type fakeFeed struct {
	gotUser     string
	gotN        int
	gotExcluded []string
	contracts   []domain.Contract
}

func (f *fakeFeed) Recommended(_ context.Context, userID string, n int, excluded []string) ([]domain.Contract, error) {
	f.gotUser, f.gotN, f.gotExcluded = userID, n, excluded
	return f.contracts, nil
}

type memRecords struct {
	mu      sync.Mutex
	records []domain.ResolutionRecord
	paths   map[int64]string
}

func (m *memRecords) Insert(_ context.Context, rec domain.ResolutionRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *memRecords) SetArchivePath(_ context.Context, id int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paths == nil {
		m.paths = make(map[int64]string)
	}
	m.paths[id] = path
	return nil
}

func (m *memRecords) ListByContract(_ context.Context, contractID string, _ domain.ListOpts) ([]domain.ResolutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ResolutionRecord
	for _, r := range m.records {
		if r.ContractID == contractID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecords) ListBefore(_ context.Context, _ time.Time, _ int) ([]domain.ResolutionRecord, error) {
	return nil, nil
}

func (m *memRecords) all() []domain.ResolutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ResolutionRecord(nil), m.records...)
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []domain.ResolutionRecord
}

func (f *fakeArchiver) ArchiveRecord(_ context.Context, rec domain.ResolutionRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, rec)
	return "resolutions/" + rec.ContractID + "/x.json", nil
}

func (f *fakeArchiver) ArchiveBefore(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][]domain.StreamMessage
}

func (m *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.published == nil {
		m.published = make(map[string][][]byte)
	}
	m.published[channel] = append(m.published[channel], payload)
	return nil
}

func (m *memBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (m *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streams == nil {
		m.streams = make(map[string][]domain.StreamMessage)
	}
	m.streams[stream] = append(m.streams[stream], domain.StreamMessage{Payload: payload})
	return nil
}

func (m *memBus) StreamRead(_ context.Context, stream string, _ string, _ int) ([]domain.StreamMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[stream], nil
}

func (m *memBus) events(t interface{ Fatalf(string, ...any) }) []domain.ResolutionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ResolutionEvent
	for _, p := range m.published[domain.ChannelResolution] {
		var ev domain.ResolutionEvent
		if err := json.Unmarshal(p, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

type fakeResolver struct {
	mu      sync.Mutex
	reqs    []domain.ResolutionRequest
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, req domain.ResolutionRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	block, entered, err := f.block, f.entered, f.err
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakeResolver) requests() []domain.ResolutionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ResolutionRequest(nil), f.reqs...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.ResolutionEvent
}

func (f *fakeNotifier) NotifyResolution(_ context.Context, ev domain.ResolutionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type memQueue struct {
	msgs []email.Message
}

func (m *memQueue) Enqueue(_ context.Context, msg email.Message) error {
	m.msgs = append(m.msgs, msg)
	return nil
}
