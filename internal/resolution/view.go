package resolution

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// Color is the confirm button accent.
type Color string

const (
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorIndigo Color = "indigo"
)

// ChoiceKind is the per-answer selection control.
type ChoiceKind string

const (
	ChoiceRadio    ChoiceKind = "radio"
	ChoiceCheckbox ChoiceKind = "checkbox"
	ChoiceNone     ChoiceKind = "none"
)

// Bettors is how traders are addressed in user-facing copy.
const Bettors = "traders"

// Button is the derived confirm button state.
type Button struct {
	Color    Color  `json:"color"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// ButtonColor derives the confirm button accent from mode and choice.
func ButtonColor(mode domain.ResolutionMode, c Choice) Color {
	switch {
	case mode == domain.ModeCancel:
		return ColorYellow
	case mode == domain.ModeChooseOne && c.Len() > 0:
		return ColorGreen
	case mode == domain.ModeChooseMultiple && c.Len() > 1 && c.AllPositive():
		return ColorBlue
	default:
		return ColorIndigo
	}
}

// ButtonLabel is the text after "Resolve" on the confirm button.
func ButtonLabel(mode domain.ResolutionMode, chosenText string, c Choice) string {
	switch mode {
	case domain.ModeCancel:
		return "N/A"
	case domain.ModeChooseOne:
		return chosenText
	default:
		return fmt.Sprintf("%d answers", c.Len())
	}
}

// ButtonDisabled reports whether the confirm button is inert.
func ButtonDisabled(mode domain.ResolutionMode, c Choice) bool {
	return !CanSubmit(mode, c)
}

// ChosenText names the first chosen answer, or "an answer" when it cannot
// be found on the contract.
func ChosenText(contract domain.Contract, c Choice) string {
	if c.Len() == 0 {
		return "an answer"
	}
	if a, ok := contract.ChosenAnswer(c.entries[0].AnswerID); ok {
		return a.Text
	}
	return "an answer"
}

// ChoiceKindFor is the selection control shown next to each answer.
func ChoiceKindFor(contract domain.Contract, mode domain.ResolutionMode) ChoiceKind {
	if contract.IsResolved() {
		return ChoiceNone
	}
	switch mode {
	case domain.ModeChooseOne:
		return ChoiceRadio
	case domain.ModeChooseMultiple:
		return ChoiceCheckbox
	default:
		return ChoiceNone
	}
}

// ShowAvatars reports whether answer authors should be displayed: anyone can
// add answers, or some answer was written by someone other than the creator.
func ShowAvatars(contract domain.Contract) bool {
	if contract.EffectiveAddAnswersMode() == domain.AddAnswersAnyone {
		return true
	}
	for _, a := range contract.Answers {
		if a.UserID != contract.CreatorID {
			return true
		}
	}
	return false
}

// ChosenShare is the fraction of the total weight assigned to an answer.
func ChosenShare(c Choice, answerID string) float64 {
	for _, s := range Normalize(c) {
		if s.AnswerID == answerID {
			return s.Pct / 100
		}
	}
	return 0
}

// CancelWarning is shown while the CANCEL mode is selected.
func CancelWarning(mode domain.ResolutionMode) string {
	if mode != domain.ModeCancel {
		return ""
	}
	return "Cancel all trades and return mana back to " + Bettors + "."
}

// SortForResolution orders answers of an independently resolved contract.
// Answers still open come first; resolved answers follow by descending
// subsidy pool. Ties break by descending probability when anyone may add
// answers, otherwise by index. The input is not modified.
func SortForResolution(contract domain.Contract) []domain.Answer {
	out := make([]domain.Answer, len(contract.Answers))
	copy(out, contract.Answers)
	byProb := contract.EffectiveAddAnswersMode() == domain.AddAnswersAnyone

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsResolved() != b.IsResolved() {
			return !a.IsResolved()
		}
		if a.IsResolved() && a.SubsidyPool != b.SubsidyPool {
			return a.SubsidyPool > b.SubsidyPool
		}
		if byProb {
			return a.Prob > b.Prob
		}
		return a.Index < b.Index
	})
	return out
}
