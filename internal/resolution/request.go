package resolution

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// CanSubmit reports whether a choice is submittable under the given mode.
//
//	CHOOSE_ONE       exactly one entry
//	CHOOSE_MULTIPLE  at least two entries, all weights > 0
//	CANCEL           always; the mapping is ignored
func CanSubmit(mode domain.ResolutionMode, c Choice) bool {
	switch mode {
	case domain.ModeChooseOne:
		return c.Len() == 1
	case domain.ModeChooseMultiple:
		return c.Len() >= 2 && c.AllPositive()
	case domain.ModeCancel:
		return true
	default:
		return false
	}
}

// Share is a normalized entry; Pct values of a choice sum to 100.
type Share struct {
	AnswerID string
	Pct      float64
}

// Normalize rescales the weights so they sum to 100, preserving order.
// Weights are first divided by the largest one so that magnitudes near the
// float64 limit cannot overflow. A choice whose total is not positive yields
// zero percentages.
func Normalize(c Choice) []Share {
	var peak float64
	for _, e := range c.entries {
		if e.Weight > peak {
			peak = e.Weight
		}
	}

	scaled := make([]float64, len(c.entries))
	var total float64
	for i, e := range c.entries {
		scaled[i] = relativeWeight(e.Weight, peak)
		total += scaled[i]
	}

	shares := make([]Share, 0, c.Len())
	for i, e := range c.entries {
		var pct float64
		if total > 0 && !math.IsInf(total, 0) {
			pct = 100 * scaled[i] / total
		}
		shares = append(shares, Share{AnswerID: e.AnswerID, Pct: pct})
	}
	return shares
}

// relativeWeight returns w as a fraction of peak. An infinite peak splits
// evenly between the infinite weights.
func relativeWeight(w, peak float64) float64 {
	switch {
	case peak <= 0:
		return 0
	case math.IsInf(peak, 1):
		if math.IsInf(w, 1) {
			return 1
		}
		return 0
	default:
		return w / peak
	}
}

// BuildRequest encodes a choice into the wire request for the contract's
// mechanism. Continuous-probability contracts use the mode name as outcome
// and pass answer ids through; legacy contracts use integer answer indexes
// and the "MKT" label for weighted resolutions.
func BuildRequest(contract domain.Contract, mode domain.ResolutionMode, c Choice) (domain.ResolutionRequest, error) {
	req := domain.ResolutionRequest{ContractID: contract.ID}

	if contract.Mechanism == domain.MechanismCPMMMulti {
		req.Outcome = domain.LabelOutcome(string(mode))
		switch mode {
		case domain.ModeChooseOne:
			if c.Len() > 0 {
				req.AnswerID = c.entries[0].AnswerID
			}
		case domain.ModeChooseMultiple:
			for _, s := range Normalize(c) {
				req.Resolutions = append(req.Resolutions, domain.AnswerResolution{
					AnswerID: s.AnswerID,
					Pct:      s.Pct,
				})
			}
		case domain.ModeCancel:
		default:
			return domain.ResolutionRequest{}, fmt.Errorf("resolution: %w: %q", domain.ErrInvalidMode, mode)
		}
		return req, nil
	}

	switch mode {
	case domain.ModeChooseOne:
		if c.Len() == 0 {
			return domain.ResolutionRequest{}, fmt.Errorf("resolution: %w: no answer chosen", domain.ErrInvalidAnswer)
		}
		idx, err := parseIndex(c.entries[0].AnswerID)
		if err != nil {
			return domain.ResolutionRequest{}, err
		}
		req.Outcome = domain.IndexOutcome(idx)
	case domain.ModeChooseMultiple:
		req.Outcome = domain.LabelOutcome(domain.OutcomeMarket)
		for _, s := range Normalize(c) {
			idx, err := parseIndex(s.AnswerID)
			if err != nil {
				return domain.ResolutionRequest{}, err
			}
			req.Resolutions = append(req.Resolutions, domain.AnswerResolution{
				Answer: &idx,
				Pct:    s.Pct,
			})
		}
	case domain.ModeCancel:
		req.Outcome = domain.LabelOutcome(domain.OutcomeCancel)
	default:
		return domain.ResolutionRequest{}, fmt.Errorf("resolution: %w: %q", domain.ErrInvalidMode, mode)
	}
	return req, nil
}

// InvalidAnswerError reports a legacy answer id that is not an integer.
type InvalidAnswerError struct {
	AnswerID string
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("invalid answer id %q", e.AnswerID)
}

func (e *InvalidAnswerError) UserMessage() string { return e.Error() }

func (e *InvalidAnswerError) Unwrap() error { return domain.ErrInvalidAnswer }

func parseIndex(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return 0, &InvalidAnswerError{AnswerID: id}
	}
	return n, nil
}
