package domain

import (
	"strconv"
	"time"
)

// Mechanism is the pricing/settlement model governing a contract.
type Mechanism string

const (
	// MechanismDPM is the legacy free-response/numeric mechanism. Its answers
	// are identified by integer indexes encoded as strings.
	MechanismDPM Mechanism = "dpm-2"
	// MechanismCPMMMulti is the continuous-probability mechanism with opaque
	// string answer ids and per-answer subsidy pools.
	MechanismCPMMMulti Mechanism = "cpmm-multi-1"
)

// OutcomeType is the question shape of a contract.
type OutcomeType string

const (
	OutcomeTypeBinary         OutcomeType = "BINARY"
	OutcomeTypeFreeResponse   OutcomeType = "FREE_RESPONSE"
	OutcomeTypeMultipleChoice OutcomeType = "MULTIPLE_CHOICE"
)

// AddAnswersMode controls who may add answers to a multi-answer contract.
type AddAnswersMode string

const (
	AddAnswersDisabled    AddAnswersMode = "DISABLED"
	AddAnswersAnyone      AddAnswersMode = "ANYONE"
	AddAnswersOnlyCreator AddAnswersMode = "ONLY_CREATOR"
)

// Contract is a prediction market. Multi-answer contracts own an ordered
// collection of answers.
type Contract struct {
	ID              string      `json:"id"`
	Slug            string      `json:"slug"`
	Question        string      `json:"question"`
	CreatorID       string      `json:"creatorId"`
	CreatorUsername string      `json:"creatorUsername"`
	CreatorName     string      `json:"creatorName"`
	OutcomeType     OutcomeType `json:"outcomeType"`
	Mechanism       Mechanism   `json:"mechanism"`
	Answers         []Answer    `json:"answers,omitempty"`
	// AddAnswersMode is empty for contracts created before the setting existed.
	AddAnswersMode AddAnswersMode     `json:"addAnswersMode,omitempty"`
	TotalShares    map[string]float64 `json:"totalShares,omitempty"`
	Pool           map[string]float64 `json:"pool,omitempty"`

	Resolution            string             `json:"resolution,omitempty"`
	Resolutions           map[string]float64 `json:"resolutions,omitempty"`
	ResolutionProbability *float64           `json:"resolutionProbability,omitempty"`
	ResolutionTime        *time.Time         `json:"resolutionTime,omitempty"`

	Volume        float64    `json:"volume"`
	Volume24Hours float64    `json:"volume24Hours"`
	CloseTime     *time.Time `json:"closeTime,omitempty"`
	CreatedAt     time.Time  `json:"createdTime"`
	UpdatedAt     time.Time  `json:"updatedTime"`
}

// IsResolved reports whether a terminal outcome has been recorded.
func (c Contract) IsResolved() bool {
	return c.Resolution != ""
}

// IsMultiAnswer reports whether the contract is resolved through answers.
func (c Contract) IsMultiAnswer() bool {
	return c.Mechanism == MechanismCPMMMulti ||
		c.OutcomeType == OutcomeTypeFreeResponse ||
		c.OutcomeType == OutcomeTypeMultipleChoice
}

// EffectiveAddAnswersMode returns the configured policy, falling back to the
// legacy default: anyone may add answers to free-response questions.
func (c Contract) EffectiveAddAnswersMode() AddAnswersMode {
	if c.AddAnswersMode != "" {
		return c.AddAnswersMode
	}
	if c.OutcomeType == OutcomeTypeFreeResponse {
		return AddAnswersAnyone
	}
	return AddAnswersDisabled
}

// AnswerByID returns the answer with the given identifier.
func (c Contract) AnswerByID(id string) (Answer, bool) {
	for _, a := range c.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return Answer{}, false
}

// ChosenAnswer maps a resolution choice key to the answer it designates. On
// the legacy mechanism the key is an outcome index; free-response contracts
// reserve index 0 for the implicit creator answer, so the slice is offset.
func (c Contract) ChosenAnswer(key string) (Answer, bool) {
	if c.Mechanism == MechanismCPMMMulti {
		return c.AnswerByID(key)
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return Answer{}, false
	}
	if c.OutcomeType == OutcomeTypeFreeResponse {
		n--
	}
	if n < 0 || n >= len(c.Answers) {
		return Answer{}, false
	}
	return c.Answers[n], true
}

// AnswerProbability returns the current implied probability of an answer in
// [0,1]. Continuous-probability answers carry it directly; legacy answers
// derive it from the squared outstanding shares.
func (c Contract) AnswerProbability(answerID string) float64 {
	if c.Mechanism == MechanismCPMMMulti {
		if a, ok := c.AnswerByID(answerID); ok {
			return a.Prob
		}
		return 0
	}
	return squaredShareProbability(c.TotalShares, answerID)
}

// BinaryProbability is the YES probability of a legacy binary contract.
func (c Contract) BinaryProbability() float64 {
	return squaredShareProbability(c.TotalShares, "YES")
}

func squaredShareProbability(shares map[string]float64, outcome string) float64 {
	var sumSquares float64
	for _, s := range shares {
		sumSquares += s * s
	}
	if sumSquares == 0 {
		return 0
	}
	s := shares[outcome]
	return s * s / sumSquares
}

// Answer is one selectable outcome within a multi-answer contract.
type Answer struct {
	ID             string     `json:"id"`
	ContractID     string     `json:"contractId"`
	UserID         string     `json:"userId"`
	Text           string     `json:"text"`
	Index          int        `json:"index"`
	Prob           float64    `json:"prob"`
	SubsidyPool    float64    `json:"subsidyPool"`
	Resolution     string     `json:"resolution,omitempty"`
	ResolutionTime *time.Time `json:"resolutionTime,omitempty"`
	IsOther        bool       `json:"isOther,omitempty"`

	// Author snapshot carried by legacy answers.
	Name      string `json:"name,omitempty"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`

	CreatedAt time.Time `json:"createdTime"`
}

// IsResolved reports whether the answer has been resolved independently.
func (a Answer) IsResolved() bool {
	return a.Resolution != ""
}
