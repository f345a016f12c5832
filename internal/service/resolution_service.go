package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/resolution"
)

// Resolver performs the upstream resolution RPC.
type Resolver interface {
	Resolve(ctx context.Context, req domain.ResolutionRequest) (json.RawMessage, error)
}

// ResolutionNotifier receives a summary of every submission attempt.
type ResolutionNotifier interface {
	NotifyResolution(ctx context.Context, ev domain.ResolutionEvent) error
}

// ResolutionConfig holds the tunables of the ResolutionService.
type ResolutionConfig struct {
	// LockTTL bounds how long one contract stays locked by a submission.
	LockTTL time.Duration
	// SessionIdleTTL closes sessions nobody has touched for this long.
	SessionIdleTTL time.Duration
	// SweepInterval is how often idle sessions are looked for.
	SweepInterval time.Duration
}

// DefaultResolutionConfig returns the production defaults.
func DefaultResolutionConfig() ResolutionConfig {
	return ResolutionConfig{
		LockTTL:        30 * time.Second,
		SessionIdleTTL: 30 * time.Minute,
		SweepInterval:  time.Minute,
	}
}

// lockHeldMessage is shown when another session is already submitting.
const lockHeldMessage = "This question is already being resolved"

// SessionState is a coordinator snapshot tagged with its session id.
type SessionState struct {
	SessionID string `json:"sessionId"`
	resolution.State
}

// SubmitResult is the outcome of a session submission.
type SubmitResult struct {
	Status resolution.SubmitStatus `json:"status"`
	State  SessionState            `json:"state"`
}

type session struct {
	id       string
	coord    *resolution.Coordinator
	lastUsed time.Time
}

// ResolutionService owns the open resolution sessions. Each session wraps a
// resolution.Coordinator whose submitter is locked, audited, archived and
// announced.
type ResolutionService struct {
	markets  *MarketService
	resolver Resolver
	records  domain.ResolutionStore
	archiver domain.ResolutionArchiver
	locks    domain.LockManager
	bus      domain.SignalBus
	notifier ResolutionNotifier
	cache    domain.ContractCache
	cfg      ResolutionConfig
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewResolutionService creates a ResolutionService. archiver and notifier
// may be nil.
func NewResolutionService(
	markets *MarketService,
	resolver Resolver,
	records domain.ResolutionStore,
	archiver domain.ResolutionArchiver,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier ResolutionNotifier,
	cache domain.ContractCache,
	cfg ResolutionConfig,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		markets:  markets,
		resolver: resolver,
		records:  records,
		archiver: archiver,
		locks:    locks,
		bus:      bus,
		notifier: notifier,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "resolution_service")),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Open starts a resolution session for a contract. Resolved contracts and
// contracts without multiple answers are refused.
func (s *ResolutionService) Open(ctx context.Context, contractID string) (SessionState, error) {
	c, err := s.markets.GetContract(ctx, contractID)
	if err != nil {
		return SessionState{}, fmt.Errorf("resolution_service: open: %w", err)
	}
	if c.IsResolved() {
		return SessionState{}, fmt.Errorf("resolution_service: open %q: %w", contractID, domain.ErrAlreadyResolved)
	}
	if !c.IsMultiAnswer() {
		return SessionState{}, fmt.Errorf("resolution_service: open %q: %w", contractID, domain.ErrNotMultiAnswer)
	}

	id := uuid.NewString()
	sub := &auditedSubmitter{svc: s, sessionID: id, contract: c}
	sess := &session{
		id:       id,
		coord:    resolution.NewCoordinator(c, sub, s.logger.With(slog.String("session_id", id))),
		lastUsed: s.now(),
	}
	sub.coord = sess.coord

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "resolution_service: session opened",
		slog.String("session_id", id),
		slog.String("contract_id", c.ID),
		slog.String("mechanism", string(c.Mechanism)),
		slog.Int("open_sessions", n),
	)
	return sess.state(), nil
}

// State returns the current state of a session.
func (s *ResolutionService) State(id string) (SessionState, error) {
	sess, err := s.touch(id)
	if err != nil {
		return SessionState{}, err
	}
	return sess.state(), nil
}

// SetMode switches a session's resolution mode.
func (s *ResolutionService) SetMode(id string, mode domain.ResolutionMode) (SessionState, error) {
	return s.mutate(id, func(c *resolution.Coordinator) error { return c.SetMode(mode) })
}

// Choose adds or updates an answer in a session's choice. A nil weight on a
// multi-answer mode removes the answer.
func (s *ResolutionService) Choose(id, answerID string, weight *float64) (SessionState, error) {
	return s.mutate(id, func(c *resolution.Coordinator) error { return c.Choose(answerID, weight) })
}

// Deselect removes an answer from a session's choice.
func (s *ResolutionService) Deselect(id, answerID string) (SessionState, error) {
	return s.mutate(id, func(c *resolution.Coordinator) error { return c.Deselect(answerID) })
}

// Submit sends a session's choice upstream.
func (s *ResolutionService) Submit(ctx context.Context, id string) (SubmitResult, error) {
	sess, err := s.touch(id)
	if err != nil {
		return SubmitResult{}, err
	}
	status := sess.coord.Submit(ctx)
	return SubmitResult{Status: status, State: sess.state()}, nil
}

// Close ends a session. Closing an unknown session is not an error.
func (s *ResolutionService) Close(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.coord.Close()
	}
}

// CloseAll ends every session.
func (s *ResolutionService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.coord.Close()
	}
}

// OpenSessions returns the number of live sessions.
func (s *ResolutionService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions idle since before now minus SessionIdleTTL and
// returns how many were closed. Sessions with a submission in flight are
// left alone.
func (s *ResolutionService) Sweep(now time.Time) int {
	cutoff := now.Add(-s.cfg.SessionIdleTTL)
	var stale []*session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) && !sess.coord.State().InFlight {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.coord.Close()
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is cancelled, then closes the rest.
func (s *ResolutionService) Run(ctx context.Context) error {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return ctx.Err()
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.InfoContext(ctx, "resolution_service: idle sessions closed",
					slog.Int("count", n),
				)
			}
		}
	}
}

func (s *ResolutionService) touch(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("resolution_service: session %q: %w", id, domain.ErrNotFound)
	}
	sess.lastUsed = s.now()
	return sess, nil
}

func (s *ResolutionService) mutate(id string, fn func(*resolution.Coordinator) error) (SessionState, error) {
	sess, err := s.touch(id)
	if err != nil {
		return SessionState{}, err
	}
	if err := fn(sess.coord); err != nil {
		return SessionState{}, err
	}
	return sess.state(), nil
}

func (sess *session) state() SessionState {
	return SessionState{SessionID: sess.id, State: sess.coord.State()}
}

// auditedSubmitter wraps the upstream RPC with a per-contract lock, the audit
// log, cold-storage archiving, a bus event, operator notification and cache
// invalidation.
type auditedSubmitter struct {
	svc       *ResolutionService
	sessionID string
	contract  domain.Contract
	coord     *resolution.Coordinator
}

func (a *auditedSubmitter) Resolve(ctx context.Context, req domain.ResolutionRequest) (json.RawMessage, error) {
	s := a.svc

	unlock, err := s.locks.Acquire(ctx, domain.ResolveLockKey(a.contract.ID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, &domain.RejectionError{Message: lockHeldMessage}
		}
		return nil, fmt.Errorf("resolution_service: lock: %w", err)
	}
	defer unlock()

	submittedAt := s.now().UTC()
	resp, rpcErr := s.resolver.Resolve(ctx, req)

	// Bookkeeping must outlive a caller that went away mid-request.
	bg := context.WithoutCancel(ctx)

	rec := domain.ResolutionRecord{
		ContractID:  a.contract.ID,
		SessionID:   a.sessionID,
		Mechanism:   a.contract.Mechanism,
		Mode:        a.coord.State().Mode,
		Request:     req,
		Status:      domain.ResolutionSucceeded,
		Response:    resp,
		SubmittedAt: submittedAt,
	}
	if rpcErr != nil {
		rec.Status = domain.ResolutionFailed
		rec.Error = rpcErr.Error()
	}
	a.record(bg, rec)

	ev := domain.ResolutionEvent{
		ContractID: a.contract.ID,
		Question:   a.contract.Question,
		Outcome:    req.Outcome.String(),
		Status:     rec.Status,
		Error:      rec.Error,
		At:         submittedAt,
	}
	a.announce(bg, ev)

	if rpcErr == nil {
		if err := s.cache.Invalidate(bg, a.contract.ID); err != nil {
			s.logger.WarnContext(ctx, "resolution_service: cache invalidate failed",
				slog.String("contract_id", a.contract.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return resp, rpcErr
}

func (a *auditedSubmitter) record(ctx context.Context, rec domain.ResolutionRecord) {
	s := a.svc
	id, err := s.records.Insert(ctx, rec)
	if err != nil {
		s.logger.ErrorContext(ctx, "resolution_service: audit insert failed",
			slog.String("contract_id", rec.ContractID),
			slog.String("error", err.Error()),
		)
	}
	rec.ID = id

	if s.archiver == nil {
		return
	}
	path, err := s.archiver.ArchiveRecord(ctx, rec)
	if err != nil {
		s.logger.WarnContext(ctx, "resolution_service: archive failed",
			slog.String("contract_id", rec.ContractID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "resolution_service: archived",
		slog.String("contract_id", rec.ContractID),
		slog.String("path", path),
	)
}

func (a *auditedSubmitter) announce(ctx context.Context, ev domain.ResolutionEvent) {
	s := a.svc
	payload, err := json.Marshal(ev)
	if err == nil {
		err = s.bus.Publish(ctx, domain.ChannelResolution, payload)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "resolution_service: publish event failed",
			slog.String("contract_id", ev.ContractID),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyResolution(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "resolution_service: notify failed",
			slog.String("contract_id", ev.ContractID),
			slog.String("error", err.Error()),
		)
	}
}
