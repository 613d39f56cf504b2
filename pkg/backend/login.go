package backend

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	authStatePath = "/v2/plugin/auth/state"
	authTokenPath = "/v2/plugin/auth/token"

	// codeLoginPending is the backend status code for "user has not
	// completed the browser login yet".
	codeLoginPending = 11217
)

// LoginChallenge is the result of starting a login: the URL the user must
// open in a browser and the opaque state used to poll for the token.
type LoginChallenge struct {
	// State identifies this login attempt on the backend
	State string `json:"state"`

	// AuthURL is the browser URL the user completes the login at
	AuthURL string `json:"authUrl"`
}

// TokenData is the credential material returned by a successful login poll.
type TokenData struct {
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
	RefreshToken string `json:"refreshToken"`
	SessionState string `json:"sessionState"`
	Scope        string `json:"scope"`
	Domain       string `json:"domain"`
}

// LoginPoll is the outcome of a single poll of the token endpoint.
type LoginPoll struct {
	// Pending is true while the user has not completed the browser login
	Pending bool

	// Token is set when the login completed successfully
	Token *TokenData

	// Code and Message carry the backend's status for diagnostics
	Code    int
	Message string
}

// apiEnvelope is the backend's standard response wrapper.
type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// StartLogin begins a browser-based login flow. The returned challenge
// carries the URL to show the user and the state to poll with.
func (c *Client) StartLogin(ctx context.Context) (*LoginChallenge, error) {
	// The nonce keeps intermediaries from serving a cached challenge.
	nonce := randomHex(8)
	url := fmt.Sprintf("%s%s?platform=CLI&nonce=%s", c.endpoint, authStatePath, nonce)

	payload, err := json.Marshal(map[string]string{"nonce": nonce})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setLoginHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	var envelope apiEnvelope
	if err := c.doJSON(req, &envelope); err != nil {
		return nil, err
	}
	if envelope.Code != 0 {
		return nil, &UpstreamError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("login start refused (code %d): %s", envelope.Code, envelope.Msg),
		}
	}

	var challenge LoginChallenge
	if err := json.Unmarshal(envelope.Data, &challenge); err != nil {
		return nil, &ParseError{RawResponse: string(envelope.Data), Cause: err}
	}
	if challenge.State == "" || challenge.AuthURL == "" {
		return nil, &ParseError{
			RawResponse: string(envelope.Data),
			Cause:       fmt.Errorf("login challenge missing state or authUrl"),
		}
	}

	c.logger.Info("login challenge issued", "state", challenge.State)
	return &challenge, nil
}

// PollLogin checks whether the user has completed the login identified by
// state. It distinguishes three outcomes: still pending, token granted, and
// backend refusal.
func (c *Client) PollLogin(ctx context.Context, state string) (*LoginPoll, error) {
	url := fmt.Sprintf("%s%s?state=%s", c.endpoint, authTokenPath, state)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setLoginHeaders(req)

	var envelope apiEnvelope
	if err := c.doJSON(req, &envelope); err != nil {
		return nil, err
	}

	poll := &LoginPoll{Code: envelope.Code, Message: envelope.Msg}

	switch {
	case envelope.Code == codeLoginPending:
		poll.Pending = true
		return poll, nil

	case envelope.Code == 0 && len(envelope.Data) > 0:
		var token TokenData
		if err := json.Unmarshal(envelope.Data, &token); err != nil {
			return nil, &ParseError{RawResponse: string(envelope.Data), Cause: err}
		}
		if token.AccessToken == "" {
			return nil, &ParseError{
				RawResponse: string(envelope.Data),
				Cause:       fmt.Errorf("login response missing access token"),
			}
		}
		poll.Token = &token
		return poll, nil

	default:
		return nil, &UpstreamError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("login poll refused (code %d): %s", envelope.Code, envelope.Msg),
		}
	}
}

// setLoginHeaders sets the headers the login endpoints require. These calls
// are unauthenticated; the X-No-* headers tell the backend not to expect
// identity context.
func (c *Client) setLoginHeaders(req *http.Request) {
	h := req.Header
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("X-Request-ID", strings.ReplaceAll(uuid.NewString(), "-", ""))
	h.Set("X-B3-Sampled", "1")
	h.Set("X-No-Authorization", "true")
	h.Set("X-No-User-Id", "true")
	h.Set("X-No-Enterprise-Id", "true")
	h.Set("X-No-Department-Info", "true")
	h.Set("X-Product", "SaaS")
	h.Set("X-Domain", c.host())
}

// doJSON executes a request and decodes the JSON body into out.
func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return req.Context().Err()
		}
		return &TransportError{Op: "login", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: "login", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{RawResponse: string(body), Cause: err}
	}
	return nil
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
