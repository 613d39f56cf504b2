package credential

import (
	"encoding/json"
	"time"
)

// knownFields is the set of JSON keys owned by Record. Everything else in a
// credential file is preserved verbatim in Extra across load/save cycles.
var knownFields = map[string]bool{
	"bearer_token":  true,
	"user_id":       true,
	"created_at":    true,
	"expires_in":    true,
	"refresh_token": true,
	"token_type":    true,
	"scope":         true,
	"domain":        true,
	"session_state": true,
}

// Record is a single stored credential. Records are persisted as one JSON
// file per credential; the ID is the file name without the .json extension
// and is never serialized into the file body.
type Record struct {
	// ID identifies the record within the store. Derived from the file name.
	ID string `json:"-"`

	// BearerToken is the access token presented to the backend.
	BearerToken string `json:"bearer_token"`

	// UserID identifies the account the token belongs to. Sent to the
	// backend alongside the bearer token.
	UserID string `json:"user_id,omitempty"`

	// CreatedAt is the Unix timestamp (seconds) at which the token was
	// issued.
	CreatedAt int64 `json:"created_at,omitempty"`

	// ExpiresIn is the token lifetime in seconds from CreatedAt. Zero means
	// the lifetime is unknown and the record is treated as non-expiring.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken, TokenType, Scope, Domain, and SessionState are carried
	// through from the authorization response. The relay does not act on
	// them but keeps them for operators and future refresh support.
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Domain       string `json:"domain,omitempty"`
	SessionState string `json:"session_state,omitempty"`

	// Extra holds any fields found in the credential file that this version
	// of the relay does not model. They round-trip through Save unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// Expired reports whether the record's token lifetime has elapsed. Records
// without CreatedAt or ExpiresIn never report expired.
func (r *Record) Expired(now time.Time) bool {
	if r.CreatedAt == 0 || r.ExpiresIn == 0 {
		return false
	}
	return now.Unix() >= r.CreatedAt+r.ExpiresIn
}

// Usable reports whether the record carries enough state to authenticate a
// backend call. Expiry is deliberately not considered: expired records stay
// in rotation until the backend rejects them.
func (r *Record) Usable() bool {
	return r.BearerToken != ""
}

// UnmarshalJSON decodes a credential file, splitting recognized fields into
// the typed struct and stashing everything else in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	var typed alias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if knownFields[k] {
			delete(raw, k)
		}
	}

	*r = Record(typed)
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON encodes the record for persistence, merging Extra back in so
// unknown fields survive a load/save round trip. Typed fields win on key
// collision.
func (r *Record) MarshalJSON() ([]byte, error) {
	type alias Record
	typed, err := json.Marshal((*alias)(r))
	if err != nil {
		return nil, err
	}

	if len(r.Extra) == 0 {
		return typed, nil
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(knownFields))
	for k, v := range r.Extra {
		merged[k] = v
	}
	var own map[string]json.RawMessage
	if err := json.Unmarshal(typed, &own); err != nil {
		return nil, err
	}
	for k, v := range own {
		merged[k] = v
	}
	return json.Marshal(merged)
}
