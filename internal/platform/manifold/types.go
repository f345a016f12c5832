package manifold

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// Base URLs of the public API per environment.
const (
	ProdBaseURL = "https://api.manifold.markets/v0"
	DevBaseURL  = "https://api.dev.manifold.markets/v0"
)

// BaseURL returns the API root for an environment.
func BaseURL(env domain.Environment) string {
	if env.IsProd() {
		return ProdBaseURL
	}
	return DevBaseURL
}

// APIError is a non-2xx reply from the API. It is a classified rejection:
// the message is safe to show to the user who triggered the call.
type APIError struct {
	Code    int             `json:"-"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`

	sentinel error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("manifold: API error %d: %s", e.Code, e.Message)
}

// UserMessage returns the server-provided explanation.
func (e *APIError) UserMessage() string {
	return e.Message
}

// Unwrap exposes domain.ErrRejected plus the status-specific sentinel, if any.
func (e *APIError) Unwrap() []error {
	if e.sentinel != nil {
		return []error{domain.ErrRejected, e.sentinel}
	}
	return []error{domain.ErrRejected}
}

// UpstreamError is a 5xx reply that carries no API message, typically an
// error page from a proxy or load balancer. It is a transport failure, not a
// rejection, and its body is never shown to users.
type UpstreamError struct {
	Code int
	Body string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("manifold: upstream error %d", e.Code)
	}
	return fmt.Sprintf("manifold: upstream error %d: %s", e.Code, e.Body)
}

// APIUser is a user profile as returned by GET /user/by-id/{id}.
type APIUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl"`
	CreatedTime int64  `json:"createdTime"`
}

// ToDomain converts the API user to a domain.User.
func (u APIUser) ToDomain() domain.User {
	var created time.Time
	if u.CreatedTime > 0 {
		created = time.UnixMilli(u.CreatedTime).UTC()
	}
	return domain.User{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		CreatedAt: created,
	}
}
