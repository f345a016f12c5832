package email

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		0:        "M$ 0",
		0.4:      "M$ 0",
		12:       "M$ 12",
		999.6:    "M$ 1,000",
		1234:     "M$ 1,234",
		1234567:  "M$ 1,234,567",
		-1500:    "M$ -1,500",
		123456.7: "M$ 123,457",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(in), "amount %v", in)
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "66%", FormatPercent(0.657))
	assert.Equal(t, "0%", FormatPercent(0))
	assert.Equal(t, "100%", FormatPercent(1))
}

func TestToDisplayResolution(t *testing.T) {
	assert.Equal(t, "MULTI", ToDisplayResolution("MKT", 0.5, map[string]float64{"1": 50, "2": 50}))
	assert.Equal(t, "50%", ToDisplayResolution("MKT", 0.5, nil))
	assert.Equal(t, "YES", ToDisplayResolution("YES", 0, nil))
	assert.Equal(t, "NO", ToDisplayResolution("NO", 0, nil))
	assert.Equal(t, "N/A", ToDisplayResolution("CANCEL", 0, nil))
	assert.Equal(t, "#3", ToDisplayResolution("3", 0, nil))
}

func testContract() domain.Contract {
	return domain.Contract{
		ID:              "c1",
		Slug:            "who-wins",
		Question:        "Who wins?",
		CreatorID:       "creator",
		CreatorUsername: "alice",
		Pool:            map[string]float64{"0": 600, "1": 650.4},
	}
}

func TestMarketResolved(t *testing.T) {
	c := NewComposer(DefaultConfig(domain.EnvProd))
	user := domain.User{ID: "u1", Name: "Bob Smith"}
	creator := domain.User{ID: "creator", Name: "Alice", Username: "alice"}
	priv := domain.PrivateUser{ID: "u1", Email: "bob@example.com"}

	msg, err := c.MarketResolved(user, priv, 41.6, creator, testContract(), "MKT", nil, map[string]float64{"0": 100})
	require.NoError(t, err)
	assert.Equal(t, KindMarketResolved, msg.Kind)
	assert.Equal(t, "market-resolved", msg.Template)
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Equal(t, "Resolved MULTI: Who wins?", msg.Subject)
	assert.Equal(t, "42", msg.TemplateData["payout"])
	assert.Equal(t, "Alice", msg.TemplateData["creatorName"])
	assert.Equal(t, "https://manifold.markets/alice/who-wins", msg.TemplateData["url"])
	assert.NotEmpty(t, msg.ID)

	prob := 0.25
	msg, err = c.MarketResolved(user, priv, 0, creator, testContract(), "MKT", &prob, nil)
	require.NoError(t, err)
	assert.Equal(t, "Resolved 25%: Who wins?", msg.Subject)

	priv.UnsubscribedFromResolutionEmails = true
	_, err = c.MarketResolved(user, priv, 0, creator, testContract(), "YES", nil, nil)
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestWelcome(t *testing.T) {
	c := NewComposer(DefaultConfig(domain.EnvDev))
	msg, err := c.Welcome(domain.User{Name: "Carol Jones"}, domain.PrivateUser{Email: "carol@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Manifold Markets!", msg.Subject)
	assert.Empty(t, msg.Template)
	assert.True(t, strings.HasPrefix(msg.Text, "Hi Carol,\n\n"))
	assert.True(t, strings.HasSuffix(msg.Text, "Austin from Manifold\nhttps://manifold.markets/"))

	_, err = c.Welcome(domain.User{Name: "Carol"}, domain.PrivateUser{})
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestMarketClose(t *testing.T) {
	c := NewComposer(DefaultConfig(domain.EnvProd))
	user := domain.User{ID: "creator", Name: "Alice Liddell", Username: "alice"}
	msg, err := c.MarketClose(user, domain.PrivateUser{Email: "a@example.com"}, testContract())
	require.NoError(t, err)
	assert.Equal(t, "Your market has closed", msg.Subject)
	assert.Equal(t, "Alice", msg.TemplateData["name"])
	assert.Equal(t, "M$ 1,250", msg.TemplateData["pool"])
	assert.Equal(t, "1", msg.TemplateData["creatorFee"])
}

func TestNewCommentAndAnswer(t *testing.T) {
	c := NewComposer(DefaultConfig(domain.EnvDev))
	commenter := domain.User{ID: "u2", Name: "Dan", AvatarURL: "https://img/d.png"}
	comment := domain.Comment{Text: "nice"}

	msg, err := c.NewComment("u3", domain.PrivateUser{Email: "e@example.com"}, commenter, comment, testContract())
	require.NoError(t, err)
	assert.Equal(t, "Comment on Who wins?", msg.Subject)
	assert.Equal(t, "Dan <info@manifold.markets>", msg.From)
	assert.Equal(t,
		"https://us-central1-dev-mantic-markets.cloudfunctions.net/unsubscribe?id=u3&type=market-comment",
		msg.TemplateData["unsubscribeUrl"])

	_, err = c.NewComment("u3", domain.PrivateUser{Email: "e@example.com", UnsubscribedFromCommentEmails: true},
		commenter, comment, testContract())
	assert.ErrorIs(t, err, ErrNotSubscribed)

	answer := domain.Answer{Name: "Eve", Text: "Option C"}
	msg, err = c.NewAnswer(domain.PrivateUser{Email: "a@example.com"}, answer, testContract())
	require.NoError(t, err)
	assert.Equal(t, "New answer on Who wins?", msg.Subject)
	assert.Equal(t, "Option C", msg.TemplateData["answer"])
	assert.Contains(t, msg.TemplateData["unsubscribeUrl"], "id=creator")

	_, err = c.NewAnswer(domain.PrivateUser{Email: "a@example.com", UnsubscribedFromAnswerEmails: true}, answer, testContract())
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestUnsubscribeURLProd(t *testing.T) {
	c := NewComposer(DefaultConfig(domain.EnvProd))
	assert.Equal(t,
		"https://us-central1-mantic-markets.cloudfunctions.net/unsubscribe?id=u1&type=market-answer",
		c.UnsubscribeURL("u1", KindMarketAnswer))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("market-close")
	require.NoError(t, err)
	assert.Equal(t, KindMarketClose, k)
	_, err = ParseKind("digest")
	assert.Error(t, err)
}

type memStream struct {
	mu      sync.Mutex
	entries []domain.StreamMessage
}

func (m *memStream) StreamAppend(_ context.Context, _ string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, domain.StreamMessage{ID: strconv.Itoa(len(m.entries) + 1), Payload: payload})
	return nil
}

func (m *memStream) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if lastID != "0" && lastID != "" {
		start, _ = strconv.Atoi(lastID)
	}
	var out []domain.StreamMessage
	for i := start; i < len(m.entries) && len(out) < count; i++ {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func TestOutboxRoundTrip(t *testing.T) {
	stream := &memStream{}
	ob := NewOutbox(stream)
	c := NewComposer(DefaultConfig(domain.EnvDev))

	w, err := c.Welcome(domain.User{Name: "Fay"}, domain.PrivateUser{Email: "f@example.com"})
	require.NoError(t, err)
	require.NoError(t, ob.Enqueue(context.Background(), w))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(stream.entries[0].Payload, &raw))
	assert.Equal(t, "welcome", raw["kind"])

	msgs, last, err := ob.Pending(context.Background(), "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "1", last)
	assert.Equal(t, w.ID, msgs[0].ID)

	msgs, last, err = ob.Pending(context.Background(), last, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, "1", last)
}
