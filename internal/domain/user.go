package domain

import "time"

// User is the public profile of a platform user.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdTime"`
}

// FirstName returns the first whitespace-separated token of the display name.
func (u User) FirstName() string {
	for i, r := range u.Name {
		if r == ' ' {
			return u.Name[:i]
		}
	}
	return u.Name
}

// PrivateUser holds contact details and email preferences.
type PrivateUser struct {
	ID                               string `json:"id"`
	Email                            string `json:"email,omitempty"`
	UnsubscribedFromResolutionEmails bool   `json:"unsubscribedFromResolutionEmails,omitempty"`
	UnsubscribedFromCommentEmails    bool   `json:"unsubscribedFromCommentEmails,omitempty"`
	UnsubscribedFromAnswerEmails     bool   `json:"unsubscribedFromAnswerEmails,omitempty"`
}

// Identity is the display attribution for an answer or comment author.
type Identity struct {
	UserID    string `json:"userId,omitempty"`
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// UnknownIdentity is the placeholder used when an author cannot be resolved.
var UnknownIdentity = Identity{Name: "Unknown"}

// Comment is a user comment on a contract.
type Comment struct {
	ID            string    `json:"id"`
	ContractID    string    `json:"contractId"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserUsername  string    `json:"userUsername"`
	UserAvatarURL string    `json:"userAvatarUrl,omitempty"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdTime"`
}
