package authflow

import "time"

// SessionStatus is the lifecycle state of a login session.
type SessionStatus string

// Session lifecycle states. A session starts pending, and each poll moves it
// toward exactly one terminal state.
const (
	// StatusPending means the user has not completed the browser login yet.
	StatusPending SessionStatus = "pending"

	// StatusCompleted means the token was obtained and the credential saved.
	StatusCompleted SessionStatus = "completed"

	// StatusFailed means the backend refused the login or polling errored out.
	StatusFailed SessionStatus = "failed"

	// StatusExpired means the user never completed the login within the
	// polling budget.
	StatusExpired SessionStatus = "expired"
)

// Terminal reports whether the status is a final state.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Session tracks one login attempt. Sessions are independent: any number can
// run concurrently, each polling the backend with its own state value.
type Session struct {
	// ID identifies the session toward relay clients
	ID string `json:"id"`

	// AuthURL is the browser URL the user completes the login at
	AuthURL string `json:"auth_url"`

	// Status is the current lifecycle state
	Status SessionStatus `json:"status"`

	// CredentialID is set when the session completed and a credential was saved
	CredentialID string `json:"credential_id,omitempty"`

	// UserID is the account identity parsed from the token, set on completion
	UserID string `json:"user_id,omitempty"`

	// Error describes why the session failed, set on failure
	Error string `json:"error,omitempty"`

	// Polls counts backend polls performed so far
	Polls int `json:"polls"`

	// CreatedAt is when the session was started
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the session last saw activity: a state change, a
	// backend poll, or a client status read
	UpdatedAt time.Time `json:"updated_at"`

	// state is the backend's opaque login state; never exposed to clients.
	state string
}

// clone returns a copy safe to hand outside the controller's lock.
func (s *Session) clone() *Session {
	c := *s
	return &c
}
