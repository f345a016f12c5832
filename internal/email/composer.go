// Package email composes the platform's transactional emails and queues them
// for an external delivery worker.
package email

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// ErrNotSubscribed means the recipient opted out or has no address; the
// message is skipped rather than failed.
var ErrNotSubscribed = errors.New("email: recipient not subscribed")

// Kind names an email type. Template kinds double as template names.
type Kind string

const (
	KindMarketResolved Kind = "market-resolved"
	KindMarketClose    Kind = "market-close"
	KindMarketComment  Kind = "market-comment"
	KindMarketAnswer   Kind = "market-answer"
	KindWelcome        Kind = "welcome"
)

// ParseKind validates an email kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindMarketResolved, KindMarketClose, KindMarketComment, KindMarketAnswer, KindWelcome:
		return k, nil
	}
	return "", fmt.Errorf("email: unknown kind %q", s)
}

// Message is a fully composed email. Template messages carry Template and
// TemplateData; plain messages carry Text.
type Message struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	To           string            `json:"to"`
	From         string            `json:"from,omitempty"`
	Subject      string            `json:"subject"`
	Template     string            `json:"template,omitempty"`
	TemplateData map[string]string `json:"templateData,omitempty"`
	Text         string            `json:"text,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Config configures a Composer.
type Config struct {
	Env         domain.Environment
	SiteURL     string
	FromAddress string
	// CreatorFee is the fraction of the pool paid to a market's creator.
	CreatorFee decimal.Decimal
	// DiscordInvite is linked from the welcome email.
	DiscordInvite string
}

// DefaultConfig returns production-like defaults for env.
func DefaultConfig(env domain.Environment) Config {
	return Config{
		Env:           env,
		SiteURL:       "https://manifold.markets",
		FromAddress:   "info@manifold.markets",
		CreatorFee:    decimal.RequireFromString("0.01"),
		DiscordInvite: "https://discord.gg/eHQBNBqXuh",
	}
}

// Composer builds messages. It does no I/O.
type Composer struct {
	cfg Config
	now func() time.Time
}

// NewComposer creates a Composer.
func NewComposer(cfg Config) *Composer {
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &Composer{cfg: cfg, now: time.Now}
}

// ContractURL is the public page of a contract.
func (c *Composer) ContractURL(creatorUsername, slug string) string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.SiteURL, creatorUsername, slug)
}

// UnsubscribeURL is the one-click opt-out link for a user and email kind.
func (c *Composer) UnsubscribeURL(userID string, kind Kind) string {
	project := "dev-mantic-markets"
	if c.cfg.Env.IsProd() {
		project = "mantic-markets"
	}
	q := url.Values{}
	q.Set("id", userID)
	q.Set("type", string(kind))
	return fmt.Sprintf("https://us-central1-%s.cloudfunctions.net/unsubscribe?%s", project, q.Encode())
}

// MarketResolved tells a trader how a contract resolved and what they were
// paid. When resolutionProbability is nil the contract's current probability
// is shown for "MKT" resolutions.
func (c *Composer) MarketResolved(
	user domain.User,
	priv domain.PrivateUser,
	payout float64,
	creator domain.User,
	contract domain.Contract,
	resolution string,
	resolutionProbability *float64,
	resolutions map[string]float64,
) (Message, error) {
	if priv.UnsubscribedFromResolutionEmails || priv.Email == "" {
		return Message{}, ErrNotSubscribed
	}

	prob := contract.BinaryProbability()
	if resolutionProbability != nil {
		prob = *resolutionProbability
	}
	outcome := ToDisplayResolution(resolution, prob, resolutions)

	return c.template(KindMarketResolved, priv.Email, "",
		fmt.Sprintf("Resolved %s: %s", outcome, contract.Question),
		map[string]string{
			"userId":      user.ID,
			"name":        user.Name,
			"creatorName": creator.Name,
			"question":    contract.Question,
			"outcome":     outcome,
			"payout":      FormatPayout(payout),
			"url":         c.ContractURL(creator.Username, contract.Slug),
		}), nil
}

// Welcome greets a new user in plain text.
func (c *Composer) Welcome(user domain.User, priv domain.PrivateUser) (Message, error) {
	if priv.Email == "" {
		return Message{}, ErrNotSubscribed
	}
	text := fmt.Sprintf(`Hi %s,

Thanks for joining us! We can't wait to see what markets you create.

Questions? Feedback? I'd love to hear from you - just reply to this email!

Or come chat with us on Discord: %s

Best,
Austin from Manifold
%s/`, user.FirstName(), c.cfg.DiscordInvite, c.cfg.SiteURL)

	return Message{
		ID:        uuid.NewString(),
		Kind:      KindWelcome,
		To:        priv.Email,
		Subject:   "Welcome to Manifold Markets!",
		Text:      text,
		CreatedAt: c.now().UTC(),
	}, nil
}

// MarketClose tells a creator their contract closed and should be resolved.
func (c *Composer) MarketClose(user domain.User, priv domain.PrivateUser, contract domain.Contract) (Message, error) {
	if priv.UnsubscribedFromResolutionEmails || priv.Email == "" {
		return Message{}, ErrNotSubscribed
	}

	var pool float64
	for _, v := range contract.Pool {
		pool += v
	}

	return c.template(KindMarketClose, priv.Email, "", "Your market has closed",
		map[string]string{
			"name":       user.FirstName(),
			"question":   contract.Question,
			"pool":       FormatMoney(pool),
			"url":        c.ContractURL(user.Username, contract.Slug),
			"userId":     user.ID,
			"creatorFee": c.cfg.CreatorFee.Shift(2).String(),
		}), nil
}

// NewComment tells a follower about a comment on a contract.
func (c *Composer) NewComment(
	userID string,
	priv domain.PrivateUser,
	commentCreator domain.User,
	comment domain.Comment,
	contract domain.Contract,
) (Message, error) {
	if priv.Email == "" || priv.UnsubscribedFromCommentEmails {
		return Message{}, ErrNotSubscribed
	}

	return c.template(KindMarketComment, priv.Email,
		fmt.Sprintf("%s <%s>", commentCreator.Name, c.cfg.FromAddress),
		"Comment on "+contract.Question,
		map[string]string{
			"commentorName":      commentCreator.Name,
			"commentorAvatarUrl": commentCreator.AvatarURL,
			"comment":            comment.Text,
			"marketUrl":          c.ContractURL(contract.CreatorUsername, contract.Slug),
			"unsubscribeUrl":     c.UnsubscribeURL(userID, KindMarketComment),
		}), nil
}

// NewAnswer tells a contract's creator that someone added an answer. priv
// belongs to the creator.
func (c *Composer) NewAnswer(priv domain.PrivateUser, answer domain.Answer, contract domain.Contract) (Message, error) {
	if priv.Email == "" || priv.UnsubscribedFromAnswerEmails {
		return Message{}, ErrNotSubscribed
	}

	return c.template(KindMarketAnswer, priv.Email,
		fmt.Sprintf("%s <%s>", answer.Name, c.cfg.FromAddress),
		"New answer on "+contract.Question,
		map[string]string{
			"name":           answer.Name,
			"avatarUrl":      answer.AvatarURL,
			"answer":         answer.Text,
			"marketUrl":      c.ContractURL(contract.CreatorUsername, contract.Slug),
			"unsubscribeUrl": c.UnsubscribeURL(contract.CreatorID, KindMarketAnswer),
		}), nil
}

func (c *Composer) template(kind Kind, to, from, subject string, data map[string]string) Message {
	return Message{
		ID:           uuid.NewString(),
		Kind:         kind,
		To:           to,
		From:         from,
		Subject:      subject,
		Template:     string(kind),
		TemplateData: data,
		CreatedAt:    c.now().UTC(),
	}
}
