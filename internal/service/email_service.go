package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketresolver/internal/domain"
	"github.com/alanyoungcy/marketresolver/internal/email"
)

// MessageQueue accepts composed email for delivery.
type MessageQueue interface {
	Enqueue(ctx context.Context, msg email.Message) error
}

// EmailRequest carries the inputs of every email kind. Which fields are
// required depends on the kind.
type EmailRequest struct {
	// UserID is the recipient, except for market-answer which always goes to
	// the contract's creator.
	UserID     string `json:"userId"`
	ContractID string `json:"contractId"`

	Payout                float64            `json:"payout"`
	Resolution            string             `json:"resolution"`
	ResolutionProbability *float64           `json:"resolutionProbability,omitempty"`
	Resolutions           map[string]float64 `json:"resolutions,omitempty"`

	CommentorID string `json:"commentorId"`
	Comment     string `json:"comment"`

	AnswerID string `json:"answerId"`
}

// EmailResult reports whether a message was queued.
type EmailResult struct {
	Queued    bool   `json:"queued"`
	MessageID string `json:"messageId,omitempty"`
	Skipped   string `json:"skipped,omitempty"`
}

// EmailService loads the people and contract behind a notification, composes
// the message and queues it.
type EmailService struct {
	composer   *email.Composer
	queue      MessageQueue
	users      domain.UserStore
	identities *IdentityResolver
	markets    *MarketService
	logger     *slog.Logger
}

// NewEmailService creates an EmailService.
func NewEmailService(
	composer *email.Composer,
	queue MessageQueue,
	users domain.UserStore,
	identities *IdentityResolver,
	markets *MarketService,
	logger *slog.Logger,
) *EmailService {
	return &EmailService{
		composer:   composer,
		queue:      queue,
		users:      users,
		identities: identities,
		markets:    markets,
		logger:     logger,
	}
}

// Send composes and queues one email of the given kind. Recipients that opted
// out or have no address are reported as skipped, not as errors.
func (s *EmailService) Send(ctx context.Context, kind email.Kind, req EmailRequest) (EmailResult, error) {
	msg, err := s.compose(ctx, kind, req)
	if errors.Is(err, email.ErrNotSubscribed) {
		s.logger.DebugContext(ctx, "email_service: recipient skipped",
			slog.String("kind", string(kind)),
			slog.String("user_id", req.UserID),
		)
		return EmailResult{Skipped: "not subscribed"}, nil
	}
	if err != nil {
		return EmailResult{}, fmt.Errorf("email_service: %s: %w", kind, err)
	}

	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return EmailResult{}, fmt.Errorf("email_service: %s: %w", kind, err)
	}
	s.logger.InfoContext(ctx, "email_service: queued",
		slog.String("kind", string(kind)),
		slog.String("message_id", msg.ID),
	)
	return EmailResult{Queued: true, MessageID: msg.ID}, nil
}

func (s *EmailService) compose(ctx context.Context, kind email.Kind, req EmailRequest) (email.Message, error) {
	switch kind {
	case email.KindWelcome:
		user, priv, err := s.recipient(ctx, req.UserID)
		if err != nil {
			return email.Message{}, err
		}
		return s.composer.Welcome(user, priv)

	case email.KindMarketResolved:
		user, priv, err := s.recipient(ctx, req.UserID)
		if err != nil {
			return email.Message{}, err
		}
		contract, err := s.markets.GetContract(ctx, req.ContractID)
		if err != nil {
			return email.Message{}, err
		}
		creator, err := s.identities.User(ctx, contract.CreatorID)
		if err != nil {
			return email.Message{}, fmt.Errorf("creator %q: %w", contract.CreatorID, err)
		}
		resolution := req.Resolution
		if resolution == "" {
			resolution = contract.Resolution
		}
		return s.composer.MarketResolved(user, priv, req.Payout, creator, contract,
			resolution, req.ResolutionProbability, req.Resolutions)

	case email.KindMarketClose:
		contract, err := s.markets.GetContract(ctx, req.ContractID)
		if err != nil {
			return email.Message{}, err
		}
		user, priv, err := s.recipient(ctx, contract.CreatorID)
		if err != nil {
			return email.Message{}, err
		}
		return s.composer.MarketClose(user, priv, contract)

	case email.KindMarketComment:
		priv, err := s.private(ctx, req.UserID)
		if err != nil {
			return email.Message{}, err
		}
		contract, err := s.markets.GetContract(ctx, req.ContractID)
		if err != nil {
			return email.Message{}, err
		}
		commentor, err := s.identities.User(ctx, req.CommentorID)
		if err != nil {
			return email.Message{}, fmt.Errorf("commentor %q: %w", req.CommentorID, err)
		}
		comment := domain.Comment{
			ContractID: contract.ID,
			UserID:     commentor.ID,
			Text:       req.Comment,
			CreatedAt:  time.Now().UTC(),
		}
		return s.composer.NewComment(req.UserID, priv, commentor, comment, contract)

	case email.KindMarketAnswer:
		contract, err := s.markets.GetContract(ctx, req.ContractID)
		if err != nil {
			return email.Message{}, err
		}
		answer, ok := contract.AnswerByID(req.AnswerID)
		if !ok {
			return email.Message{}, fmt.Errorf("answer %q: %w", req.AnswerID, domain.ErrNotFound)
		}
		if answer.Name == "" {
			who := s.identities.Resolve(ctx, answer.UserID)
			answer.Name, answer.AvatarURL = who.Name, who.AvatarURL
		}
		priv, err := s.private(ctx, contract.CreatorID)
		if err != nil {
			return email.Message{}, err
		}
		return s.composer.NewAnswer(priv, answer, contract)
	}
	return email.Message{}, fmt.Errorf("unknown kind %q", kind)
}

func (s *EmailService) recipient(ctx context.Context, userID string) (domain.User, domain.PrivateUser, error) {
	priv, err := s.private(ctx, userID)
	if err != nil {
		return domain.User{}, domain.PrivateUser{}, err
	}
	user, err := s.identities.User(ctx, userID)
	if err != nil {
		return domain.User{}, domain.PrivateUser{}, fmt.Errorf("user %q: %w", userID, err)
	}
	return user, priv, nil
}

// private loads the private settings of a user. A user without private
// settings cannot receive email.
func (s *EmailService) private(ctx context.Context, userID string) (domain.PrivateUser, error) {
	priv, err := s.users.GetPrivate(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PrivateUser{}, email.ErrNotSubscribed
	}
	if err != nil {
		return domain.PrivateUser{}, fmt.Errorf("private user %q: %w", userID, err)
	}
	return priv, nil
}
