package email

import "github.com/alanyoungcy/marketresolver/internal/domain"

// ToDisplayResolution renders a contract resolution for a subject line.
// A weighted "MKT" resolution across answers is "MULTI"; a plain "MKT" shows
// the resolution probability; unknown outcomes are answer numbers.
func ToDisplayResolution(outcome string, prob float64, resolutions map[string]float64) string {
	if outcome == domain.OutcomeMarket && resolutions != nil {
		return "MULTI"
	}
	switch outcome {
	case "YES", "NO":
		return outcome
	case domain.OutcomeCancel:
		return "N/A"
	case domain.OutcomeMarket:
		return FormatPercent(prob)
	default:
		return "#" + outcome
	}
}
