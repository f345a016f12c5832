package domain

import "time"

// ContractDocument is the JSON shape of a contract as served by the platform
// API and stored in the contracts.data column. Timestamps are epoch millis.
type ContractDocument struct {
	ID                    string             `json:"id"`
	Slug                  string             `json:"slug"`
	Question              string             `json:"question"`
	CreatorID             string             `json:"creatorId"`
	CreatorUsername       string             `json:"creatorUsername"`
	CreatorName           string             `json:"creatorName"`
	OutcomeType           OutcomeType        `json:"outcomeType"`
	Mechanism             Mechanism          `json:"mechanism"`
	Answers               []AnswerDocument   `json:"answers,omitempty"`
	AddAnswersMode        AddAnswersMode     `json:"addAnswersMode,omitempty"`
	TotalShares           map[string]float64 `json:"totalShares,omitempty"`
	Pool                  map[string]float64 `json:"pool,omitempty"`
	Resolution            string             `json:"resolution,omitempty"`
	Resolutions           map[string]float64 `json:"resolutions,omitempty"`
	ResolutionProbability *float64           `json:"resolutionProbability,omitempty"`
	ResolutionTime        int64              `json:"resolutionTime,omitempty"`
	Volume                float64            `json:"volume"`
	Volume24Hours         float64            `json:"volume24Hours"`
	CloseTime             int64              `json:"closeTime,omitempty"`
	CreatedTime           int64              `json:"createdTime"`
	LastUpdatedTime       int64              `json:"lastUpdatedTime,omitempty"`
}

// AnswerDocument is the JSON shape of an answer.
type AnswerDocument struct {
	ID             string  `json:"id"`
	ContractID     string  `json:"contractId"`
	UserID         string  `json:"userId"`
	Text           string  `json:"text"`
	Index          int     `json:"index"`
	Prob           float64 `json:"prob"`
	SubsidyPool    float64 `json:"subsidyPool"`
	Resolution     string  `json:"resolution,omitempty"`
	ResolutionTime int64   `json:"resolutionTime,omitempty"`
	IsOther        bool    `json:"isOther,omitempty"`
	Name           string  `json:"name,omitempty"`
	Username       string  `json:"username,omitempty"`
	AvatarURL      string  `json:"avatarUrl,omitempty"`
	CreatedTime    int64   `json:"createdTime"`
}

// ToDomain converts the document to a Contract.
func (d ContractDocument) ToDomain() Contract {
	c := Contract{
		ID:                    d.ID,
		Slug:                  d.Slug,
		Question:              d.Question,
		CreatorID:             d.CreatorID,
		CreatorUsername:       d.CreatorUsername,
		CreatorName:           d.CreatorName,
		OutcomeType:           d.OutcomeType,
		Mechanism:             d.Mechanism,
		AddAnswersMode:        d.AddAnswersMode,
		TotalShares:           d.TotalShares,
		Pool:                  d.Pool,
		Resolution:            d.Resolution,
		Resolutions:           d.Resolutions,
		ResolutionProbability: d.ResolutionProbability,
		ResolutionTime:        millisPtr(d.ResolutionTime),
		Volume:                d.Volume,
		Volume24Hours:         d.Volume24Hours,
		CloseTime:             millisPtr(d.CloseTime),
		CreatedAt:             millis(d.CreatedTime),
		UpdatedAt:             millis(d.LastUpdatedTime),
	}
	if len(d.Answers) > 0 {
		c.Answers = make([]Answer, len(d.Answers))
		for i, a := range d.Answers {
			c.Answers[i] = Answer{
				ID:             a.ID,
				ContractID:     a.ContractID,
				UserID:         a.UserID,
				Text:           a.Text,
				Index:          a.Index,
				Prob:           a.Prob,
				SubsidyPool:    a.SubsidyPool,
				Resolution:     a.Resolution,
				ResolutionTime: millisPtr(a.ResolutionTime),
				IsOther:        a.IsOther,
				Name:           a.Name,
				Username:       a.Username,
				AvatarURL:      a.AvatarURL,
				CreatedAt:      millis(a.CreatedTime),
			}
			if c.Answers[i].ContractID == "" {
				c.Answers[i].ContractID = d.ID
			}
		}
	}
	return c
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func millisPtr(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
