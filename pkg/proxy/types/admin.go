package types

import "codebuddy-hq/relay/pkg/usage"

// CredentialList is the response of the credential listing endpoint.
type CredentialList struct {
	// Object is always "list".
	Object string `json:"object"`

	// Data contains one entry per stored credential.
	Data []CredentialInfo `json:"data"`
}

// CredentialInfo describes one stored credential. The bearer token is never
// returned in full; only a masked preview is exposed.
type CredentialInfo struct {
	// ID is the credential's store identifier (its file name stem).
	ID string `json:"id"`

	// Object is always "credential".
	Object string `json:"object"`

	// UserID is the account identity the credential belongs to.
	UserID string `json:"user_id,omitempty"`

	// TokenPreview is a masked preview of the bearer token.
	TokenPreview string `json:"token_preview"`

	// CreatedAt is the Unix timestamp the credential was issued at.
	CreatedAt int64 `json:"created_at,omitempty"`

	// ExpiresAt is the Unix timestamp the token expires at, when known.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// Expired reports whether the token's recorded lifetime has elapsed.
	Expired bool `json:"expired"`

	// Invalidated reports whether the credential was removed from rotation
	// after a backend auth rejection.
	Invalidated bool `json:"invalidated"`
}

// CredentialDeleted is the response of the credential deletion endpoint.
type CredentialDeleted struct {
	// ID is the deleted credential's identifier.
	ID string `json:"id"`

	// Object is always "credential.deleted".
	Object string `json:"object"`

	// Deleted is always true; deletion is idempotent.
	Deleted bool `json:"deleted"`
}

// RotationState reports which credential currently serves requests and how
// it was chosen. It is the response of the selection, auto, toggle-rotation,
// and current-credential endpoints.
type RotationState struct {
	// Object is always "rotation_state".
	Object string `json:"object"`

	// Mode is "manual" when a credential is pinned, "auto" otherwise.
	Mode string `json:"mode"`

	// RotationEnabled reports whether the rotation law is advancing.
	RotationEnabled bool `json:"rotation_enabled"`

	// Served is the number of requests counted toward rotation so far.
	Served int64 `json:"served"`

	// PoolSize is the number of usable credentials in rotation.
	PoolSize int `json:"pool_size"`

	// Credential describes the active credential, absent when the pool is
	// empty.
	Credential *CredentialInfo `json:"credential,omitempty"`
}

// UsageStats is the response of the usage statistics endpoint.
type UsageStats struct {
	// Object is always "list".
	Object string `json:"object"`

	// Data contains per-model usage, ordered by request count.
	Data []usage.ModelStats `json:"data"`
}
