// Package resolution validates a creator's choice of outcome for a
// multi-answer contract, encodes it for the contract's mechanism and submits
// it exactly once.
package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// GenericSubmitError is shown when a submission fails for a reason the remote
// side did not explain.
const GenericSubmitError = "Error resolving question"

// Submitter performs the resolution RPC.
type Submitter interface {
	Resolve(ctx context.Context, req domain.ResolutionRequest) (json.RawMessage, error)
}

// SubmitStatus is the result of a Submit call.
type SubmitStatus string

const (
	// SubmitSkipped means nothing was sent: the choice was not submittable or
	// another submission was already in flight.
	SubmitSkipped   SubmitStatus = "skipped"
	SubmitSucceeded SubmitStatus = "succeeded"
	SubmitFailed    SubmitStatus = "failed"
	// SubmitDiscarded means the coordinator was closed and the outcome of the
	// call, if any, was ignored.
	SubmitDiscarded SubmitStatus = "discarded"
)

// Coordinator holds one resolution session for one contract. It is safe for
// concurrent use; at most one submission is in flight at a time.
type Coordinator struct {
	contract  domain.Contract
	submitter Submitter
	logger    *slog.Logger

	mu         sync.Mutex
	mode       domain.ResolutionMode
	choice     Choice
	inFlight   bool
	closed     bool
	lastErr    string
	lastResult json.RawMessage
}

// NewCoordinator starts a session in CHOOSE_ONE mode with nothing chosen.
func NewCoordinator(contract domain.Contract, submitter Submitter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		contract:  contract,
		submitter: submitter,
		logger: logger.With(
			slog.String("component", "resolution"),
			slog.String("contract_id", contract.ID),
		),
		mode: domain.ModeChooseOne,
	}
}

// Contract returns the contract this session resolves.
func (c *Coordinator) Contract() domain.Contract {
	return c.contract
}

// SetMode switches the resolution mode and clears the choice, even when the
// mode does not change.
func (c *Coordinator) SetMode(mode domain.ResolutionMode) error {
	if _, err := domain.ParseResolutionMode(string(mode)); err != nil {
		return fmt.Errorf("resolution: set mode: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	c.mode = mode
	c.choice.Reset()
	return nil
}

// Choose selects an answer. In CHOOSE_ONE mode the choice is replaced by
// {answerID: 100}. Otherwise the weight is set, or the entry removed when
// weight is nil. Weights are not range checked.
func (c *Coordinator) Choose(answerID string, weight *float64) error {
	if answerID == "" {
		return fmt.Errorf("resolution: choose: %w: empty id", domain.ErrInvalidAnswer)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	switch {
	case c.mode == domain.ModeChooseOne:
		c.choice.Reset()
		c.choice.Set(answerID, 100)
	case weight == nil:
		c.choice.Delete(answerID)
	default:
		c.choice.Set(answerID, *weight)
	}
	return nil
}

// Deselect removes an answer from the choice in any mode.
func (c *Coordinator) Deselect(answerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	c.choice.Delete(answerID)
	return nil
}

// CanSubmit reports whether the current choice may be submitted.
func (c *Coordinator) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CanSubmit(c.mode, c.choice)
}

// Submit sends the current choice. The submitter is called at most once per
// call and never concurrently for the same coordinator. On success the
// session returns to CHOOSE_ONE with nothing chosen; on failure the choice and
// mode are kept and the error is exposed through State.
func (c *Coordinator) Submit(ctx context.Context) SubmitStatus {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return SubmitDiscarded
	}
	if c.inFlight {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "resolution: submit ignored, already in flight")
		return SubmitSkipped
	}
	if !CanSubmit(c.mode, c.choice) {
		mode, n := c.mode, c.choice.Len()
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "resolution: submit rejected by guard",
			slog.String("error", domain.ErrValidationGuard.Error()),
			slog.String("mode", string(mode)),
			slog.Int("choices", n),
		)
		return SubmitSkipped
	}

	req, err := BuildRequest(c.contract, c.mode, c.choice)
	if err != nil {
		c.lastErr = userMessage(err)
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "resolution: build request failed",
			slog.String("error", err.Error()),
		)
		return SubmitFailed
	}
	c.inFlight = true
	c.mu.Unlock()

	result, err := c.submitter.Resolve(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.closed {
		c.logger.InfoContext(ctx, "resolution: session closed during submit, result discarded")
		return SubmitDiscarded
	}
	if err != nil {
		c.lastErr = userMessage(err)
		c.logger.ErrorContext(ctx, "resolution: submit failed",
			slog.String("error", err.Error()),
			slog.String("outcome", req.Outcome.String()),
		)
		return SubmitFailed
	}

	c.logger.InfoContext(ctx, "resolution: resolved",
		slog.String("outcome", req.Outcome.String()),
		slog.Int("resolutions", len(req.Resolutions)),
	)
	c.mode = domain.ModeChooseOne
	c.choice.Reset()
	c.lastErr = ""
	c.lastResult = result
	return SubmitSucceeded
}

// Close discards the session. A submission already in flight is not
// cancelled but its result is ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.choice.Reset()
}

// ChoiceView is one chosen answer as presented to callers.
type ChoiceView struct {
	AnswerID string  `json:"answerId"`
	Weight   float64 `json:"weight"`
	Share    float64 `json:"share"`
}

// State is a point-in-time snapshot of a session.
type State struct {
	ContractID    string                `json:"contractId"`
	Mechanism     domain.Mechanism      `json:"mechanism"`
	Mode          domain.ResolutionMode `json:"mode"`
	Choices       []ChoiceView          `json:"choices"`
	CanSubmit     bool                  `json:"canSubmit"`
	InFlight      bool                  `json:"inFlight"`
	Closed        bool                  `json:"closed"`
	Error         string                `json:"error,omitempty"`
	ChosenText    string                `json:"chosenText"`
	ChoiceKind    ChoiceKind            `json:"choiceKind"`
	ShowAvatars   bool                  `json:"showAvatars"`
	CancelWarning string                `json:"cancelWarning,omitempty"`
	Button        Button                `json:"button"`
	LastResult    json.RawMessage       `json:"lastResult,omitempty"`
}

// State returns a snapshot of the session.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	choices := make([]ChoiceView, 0, c.choice.Len())
	for _, e := range c.choice.entries {
		choices = append(choices, ChoiceView{
			AnswerID: e.AnswerID,
			Weight:   e.Weight,
			Share:    ChosenShare(c.choice, e.AnswerID),
		})
	}
	chosenText := ChosenText(c.contract, c.choice)
	return State{
		ContractID:    c.contract.ID,
		Mechanism:     c.contract.Mechanism,
		Mode:          c.mode,
		Choices:       choices,
		CanSubmit:     CanSubmit(c.mode, c.choice),
		InFlight:      c.inFlight,
		Closed:        c.closed,
		Error:         c.lastErr,
		ChosenText:    chosenText,
		ChoiceKind:    ChoiceKindFor(c.contract, c.mode),
		ShowAvatars:   ShowAvatars(c.contract),
		CancelWarning: CancelWarning(c.mode),
		Button: Button{
			Color:    ButtonColor(c.mode, c.choice),
			Label:    ButtonLabel(c.mode, chosenText, c.choice),
			Disabled: c.inFlight || ButtonDisabled(c.mode, c.choice),
		},
		LastResult: c.lastResult,
	}
}

func (c *Coordinator) mutableLocked() error {
	if c.closed {
		return domain.ErrSessionClosed
	}
	if c.inFlight {
		return domain.ErrSubmissionInFlight
	}
	return nil
}

// userMessage picks the text shown for a failed submission. Classified
// rejections and invalid answer ids carry their own message; anything else
// is reported generically.
func userMessage(err error) string {
	var uf domain.UserFacing
	if errors.As(err, &uf) && (errors.Is(err, domain.ErrRejected) || errors.Is(err, domain.ErrInvalidAnswer)) {
		return uf.UserMessage()
	}
	return GenericSubmitError
}
