package resolution

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

func cpmmContract() domain.Contract {
	return domain.Contract{
		ID:          "c-cpmm",
		Question:    "Who wins?",
		CreatorID:   "creator",
		OutcomeType: domain.OutcomeTypeMultipleChoice,
		Mechanism:   domain.MechanismCPMMMulti,
		Answers: []domain.Answer{
			{ID: "A", Text: "Alice", UserID: "creator", Index: 0, Prob: 0.3},
			{ID: "B", Text: "Bob", UserID: "creator", Index: 1, Prob: 0.7},
			{ID: "C", Text: "Carol", UserID: "creator", Index: 2, Prob: 0.1},
		},
	}
}

func legacyContract() domain.Contract {
	return domain.Contract{
		ID:          "c-dpm",
		Question:    "Best fruit?",
		CreatorID:   "creator",
		OutcomeType: domain.OutcomeTypeFreeResponse,
		Mechanism:   domain.MechanismDPM,
		Answers: []domain.Answer{
			{ID: "1", Text: "apple", UserID: "u1"},
			{ID: "2", Text: "banana", UserID: "u2"},
			{ID: "3", Text: "cherry", UserID: "u3"},
		},
	}
}

func TestCanSubmitTable(t *testing.T) {
	tests := []struct {
		name string
		mode domain.ResolutionMode
		c    Choice
		want bool
	}{
		{"one empty", domain.ModeChooseOne, NewChoice(), false},
		{"one single", domain.ModeChooseOne, NewChoice(Entry{"A", 100}), true},
		{"one two", domain.ModeChooseOne, NewChoice(Entry{"A", 100}, Entry{"B", 100}), false},
		{"multi empty", domain.ModeChooseMultiple, NewChoice(), false},
		{"multi single", domain.ModeChooseMultiple, NewChoice(Entry{"A", 50}), false},
		{"multi two positive", domain.ModeChooseMultiple, NewChoice(Entry{"A", 50}, Entry{"B", 1}), true},
		{"multi zero weight", domain.ModeChooseMultiple, NewChoice(Entry{"A", 50}, Entry{"B", 0}), false},
		{"multi negative weight", domain.ModeChooseMultiple, NewChoice(Entry{"A", 50}, Entry{"B", -3}), false},
		{"multi nan weight", domain.ModeChooseMultiple, NewChoice(Entry{"A", 50}, Entry{"B", math.NaN()}), false},
		{"cancel empty", domain.ModeCancel, NewChoice(), true},
		{"cancel ignores mapping", domain.ModeCancel, NewChoice(Entry{"A", -1}), true},
		{"unknown mode", domain.ResolutionMode("X"), NewChoice(Entry{"A", 1}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanSubmit(tt.mode, tt.c))
		})
	}
}

func TestNormalizeSumsToHundred(t *testing.T) {
	weights := [][]float64{
		{30, 70},
		{1, 1, 1},
		{0.5, 12.25, 99, 3},
		{100},
		{7, 13, 17, 19, 23, 29},
		{1e307, 1e307},
		{1e308, 1e308},
		{math.MaxFloat64, math.MaxFloat64, 1},
		{1e-300, 1},
		{1e-320, 1e-320},
		{math.Inf(1), 5},
	}
	for _, ws := range weights {
		var c Choice
		for i, w := range ws {
			c.Set(string(rune('a'+i)), w)
		}
		var sum float64
		for _, s := range Normalize(c) {
			assert.False(t, math.IsInf(s.Pct, 0) || math.IsNaN(s.Pct), "weights %v: pct %v", ws, s.Pct)
			sum += s.Pct
		}
		assert.InDelta(t, 100, sum, 1e-9, "weights %v", ws)
	}
}

func TestNormalizeHugeWeightsSplitEvenly(t *testing.T) {
	shares := Normalize(NewChoice(Entry{"A", 1e308}, Entry{"B", 1e308}))
	require.Len(t, shares, 2)
	assert.InDelta(t, 50, shares[0].Pct, 1e-9)
	assert.InDelta(t, 50, shares[1].Pct, 1e-9)

	shares = Normalize(NewChoice(Entry{"A", 1e-300}, Entry{"B", 1}))
	assert.InDelta(t, 0, shares[0].Pct, 1e-9)
	assert.InDelta(t, 100, shares[1].Pct, 1e-9)
}

func TestBuildRequestHugeWeightsMarshal(t *testing.T) {
	req, err := BuildRequest(cpmmContract(), domain.ModeChooseMultiple,
		NewChoice(Entry{"A", 1e307}, Entry{"B", 3e307}))
	require.NoError(t, err)
	require.Len(t, req.Resolutions, 2)
	assert.InDelta(t, 25, req.Resolutions[0].Pct, 1e-9)
	assert.InDelta(t, 75, req.Resolutions[1].Pct, 1e-9)

	_, err = json.Marshal(req)
	require.NoError(t, err)
}

func TestNormalizePreservesOrder(t *testing.T) {
	c := NewChoice(Entry{"z", 1}, Entry{"a", 3})
	shares := Normalize(c)
	require.Len(t, shares, 2)
	assert.Equal(t, "z", shares[0].AnswerID)
	assert.InDelta(t, 25, shares[0].Pct, 1e-9)
	assert.Equal(t, "a", shares[1].AnswerID)
	assert.InDelta(t, 75, shares[1].Pct, 1e-9)
}

func TestBuildRequestCPMMMultiple(t *testing.T) {
	req, err := BuildRequest(cpmmContract(), domain.ModeChooseMultiple, NewChoice(Entry{"A", 30}, Entry{"B", 70}))
	require.NoError(t, err)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"contractId": "c-cpmm",
		"outcome": "CHOOSE_MULTIPLE",
		"resolutions": [{"answerId": "A", "pct": 30}, {"answerId": "B", "pct": 70}]
	}`, string(b))
}

func TestBuildRequestCPMMChooseOne(t *testing.T) {
	req, err := BuildRequest(cpmmContract(), domain.ModeChooseOne, NewChoice(Entry{"B", 100}))
	require.NoError(t, err)
	assert.Equal(t, domain.LabelOutcome("CHOOSE_ONE"), req.Outcome)
	assert.Equal(t, "B", req.AnswerID)
	assert.Nil(t, req.Resolutions)
}

func TestBuildRequestLegacyChooseOne(t *testing.T) {
	req, err := BuildRequest(legacyContract(), domain.ModeChooseOne, NewChoice(Entry{"2", 100}))
	require.NoError(t, err)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"contractId": "c-dpm", "outcome": 2}`, string(b))

	req, err = BuildRequest(legacyContract(), domain.ModeChooseOne, NewChoice(Entry{" 3 ", 100}))
	require.NoError(t, err)
	assert.Equal(t, domain.IndexOutcome(3), req.Outcome)
}

func TestBuildRequestLegacyMultiple(t *testing.T) {
	req, err := BuildRequest(legacyContract(), domain.ModeChooseMultiple, NewChoice(Entry{"3", 1}, Entry{"1", 3}))
	require.NoError(t, err)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"contractId": "c-dpm",
		"outcome": "MKT",
		"resolutions": [{"answer": 3, "pct": 25}, {"answer": 1, "pct": 75}]
	}`, string(b))
}

func TestBuildRequestCancelIgnoresMapping(t *testing.T) {
	c := NewChoice(Entry{"1", 40}, Entry{"2", 60})

	req, err := BuildRequest(legacyContract(), domain.ModeCancel, c)
	require.NoError(t, err)
	assert.Equal(t, domain.LabelOutcome("CANCEL"), req.Outcome)
	assert.Empty(t, req.Resolutions)
	assert.Empty(t, req.AnswerID)

	req, err = BuildRequest(cpmmContract(), domain.ModeCancel, NewChoice(Entry{"A", 40}, Entry{"B", 60}))
	require.NoError(t, err)
	assert.Equal(t, domain.LabelOutcome("CANCEL"), req.Outcome)
	assert.Empty(t, req.Resolutions)
	assert.Empty(t, req.AnswerID)
}

func TestBuildRequestLegacyInvalidID(t *testing.T) {
	_, err := BuildRequest(legacyContract(), domain.ModeChooseOne, NewChoice(Entry{"abc", 100}))
	require.ErrorIs(t, err, domain.ErrInvalidAnswer)
	assert.Equal(t, `invalid answer id "abc"`, err.Error())

	_, err = BuildRequest(legacyContract(), domain.ModeChooseMultiple, NewChoice(Entry{"1", 1}, Entry{"x", 1}))
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)
}

func TestBuildRequestInvalidMode(t *testing.T) {
	_, err := BuildRequest(cpmmContract(), domain.ResolutionMode("YES"), NewChoice())
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
	_, err = BuildRequest(legacyContract(), domain.ResolutionMode("YES"), NewChoice())
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestChoiceKeepsInsertionOrderOnOverwrite(t *testing.T) {
	c := NewChoice(Entry{"b", 1}, Entry{"a", 2})
	c.Set("b", 5)
	assert.Equal(t, []string{"b", "a"}, c.Keys())
	w, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 5.0, w)

	c.Delete("b")
	c.Delete("missing")
	assert.Equal(t, []string{"a"}, c.Keys())

	clone := c.Clone()
	clone.Set("z", 1)
	assert.Equal(t, 1, c.Len())
}
