package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ResolutionMode is how a multi-answer contract is settled.
type ResolutionMode string

const (
	ModeChooseOne      ResolutionMode = "CHOOSE_ONE"
	ModeChooseMultiple ResolutionMode = "CHOOSE_MULTIPLE"
	ModeCancel         ResolutionMode = "CANCEL"
)

// ParseResolutionMode validates a mode name.
func ParseResolutionMode(s string) (ResolutionMode, error) {
	switch m := ResolutionMode(s); m {
	case ModeChooseOne, ModeChooseMultiple, ModeCancel:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Legacy outcome labels.
const (
	OutcomeMarket = "MKT"
	OutcomeCancel = "CANCEL"
)

// Outcome is the resolution discriminator sent on the wire. It is either a
// label ("CHOOSE_ONE", "MKT", "CANCEL", ...) or, for legacy single-answer
// resolutions, an integer answer index.
type Outcome struct {
	Label   string
	Index   int
	IsIndex bool
}

// LabelOutcome returns a label outcome.
func LabelOutcome(label string) Outcome { return Outcome{Label: label} }

// IndexOutcome returns an integer index outcome.
func IndexOutcome(i int) Outcome { return Outcome{Index: i, IsIndex: true} }

func (o Outcome) String() string {
	if o.IsIndex {
		return strconv.Itoa(o.Index)
	}
	return o.Label
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.IsIndex {
		return json.Marshal(o.Index)
	}
	return json.Marshal(o.Label)
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*o = IndexOutcome(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("domain: outcome must be a string or integer: %w", err)
	}
	*o = LabelOutcome(s)
	return nil
}

// AnswerResolution is one weighted entry of a multi-answer resolution. Newer
// contracts identify the answer by AnswerID, legacy contracts by Answer.
type AnswerResolution struct {
	AnswerID string  `json:"answerId,omitempty"`
	Answer   *int    `json:"answer,omitempty"`
	Pct      float64 `json:"pct"`
}

// Key returns the answer identifier as a string regardless of encoding.
func (r AnswerResolution) Key() string {
	if r.Answer != nil {
		return strconv.Itoa(*r.Answer)
	}
	return r.AnswerID
}

// ResolutionRequest is the body of the resolution submission RPC.
type ResolutionRequest struct {
	ContractID  string             `json:"contractId"`
	Outcome     Outcome            `json:"outcome"`
	Resolutions []AnswerResolution `json:"resolutions,omitempty"`
	AnswerID    string             `json:"answerId,omitempty"`
}

// ResolutionStatus is the terminal state of a submitted resolution.
type ResolutionStatus string

const (
	ResolutionSucceeded ResolutionStatus = "succeeded"
	ResolutionFailed    ResolutionStatus = "failed"
)

// ResolutionRecord is one audited submission attempt.
type ResolutionRecord struct {
	ID          int64             `json:"id"`
	ContractID  string            `json:"contractId"`
	SessionID   string            `json:"sessionId,omitempty"`
	Mechanism   Mechanism         `json:"mechanism"`
	Mode        ResolutionMode    `json:"mode"`
	Request     ResolutionRequest `json:"request"`
	Status      ResolutionStatus  `json:"status"`
	Error       string            `json:"error,omitempty"`
	Response    json.RawMessage   `json:"response,omitempty"`
	SubmittedAt time.Time         `json:"submittedAt"`
	ArchivePath string            `json:"archivePath,omitempty"`
}

// ResolutionEvent is published on the signal bus after every submission.
type ResolutionEvent struct {
	ContractID string           `json:"contractId"`
	Question   string           `json:"question,omitempty"`
	Outcome    string           `json:"outcome"`
	Status     ResolutionStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	At         time.Time        `json:"at"`
}

// Bus channels and streams.
const (
	ChannelResolution = "ch:resolution"
	StreamEmailOutbox = "stream:email:outbox"
)
