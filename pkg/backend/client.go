package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"codebuddy-hq/relay/pkg/config"
	"codebuddy-hq/relay/pkg/credential"
)

const (
	chatCompletionsPath = "/v2/chat/completions"

	// streamBufferSize is the chunk channel capacity. Large enough to absorb
	// bursts from the backend without blocking the reader goroutine.
	streamBufferSize = 100

	// defaultSystemPrompt is prepended when a request carries a single user
	// message, since the backend requires at least two messages.
	defaultSystemPrompt = "You are a helpful assistant."
)

// Client talks to the CodeBuddy backend. It opens streaming chat completions
// and drives the login endpoints. The client never retries a failed request
// internally; auth rejections surface as *AuthError so the caller can rotate
// credentials and decide whether to retry.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a backend client from configuration.
func NewClient(cfg config.BackendConfig) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		slog.Warn("backend TLS certificate verification disabled")
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: slog.Default().With("component", "backend-client"),
	}
}

// StreamCompletion opens a streaming chat completion using the given
// credential and returns a channel of translated chunks. The channel is
// closed when the stream ends; stream failures after the channel is
// established arrive as a final chunk with Err set.
//
// The request is shaped before sending: stream is forced on (the backend
// only speaks SSE), messages are normalized to the forms the backend
// accepts, and a system message is prepended when the conversation holds a
// single user message.
func (c *Client) StreamCompletion(ctx context.Context, req *ChatRequest, cred *credential.Record) (<-chan *StreamChunk, error) {
	shaped := shapeRequest(req)

	body, err := json.Marshal(shaped)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setChatHeaders(httpReq, cred)

	c.logger.Debug("opening completion stream",
		"model", shaped.Model,
		"messages", len(shaped.Messages),
		"credential", cred.ID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "connect", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &AuthError{
				CredentialID: cred.ID,
				StatusCode:   resp.StatusCode,
				Message:      string(errorBody),
			}
		default:
			return nil, &UpstreamError{
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}
		}
	}

	reader := newStreamReader(resp.Body)
	chunks := make(chan *StreamChunk, streamBufferSize)

	go func() {
		defer close(chunks)
		defer reader.Close()

		for {
			chunk, err := reader.Read(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case chunks <- &StreamChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// setChatHeaders sets the headers the backend requires on completion calls.
func (c *Client) setChatHeaders(req *http.Request, cred *credential.Record) {
	h := req.Header
	h.Set("Accept", "text/event-stream")
	h.Set("Content-Type", "application/json")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("X-Conversation-ID", uuid.NewString())
	h.Set("X-Request-ID", strings.ReplaceAll(uuid.NewString(), "-", ""))
	h.Set("X-B3-ParentSpanId", "")
	h.Set("X-B3-Sampled", "1")
	h.Set("X-Agent-Intent", "CodeCompletion")
	h.Set("X-Env-ID", "production")
	h.Set("X-Product", "SaaS")
	h.Set("X-Domain", c.domain(cred))
	h.Set("Authorization", "Bearer "+cred.BearerToken)
	if cred.UserID != "" {
		h.Set("X-User-Id", cred.UserID)
	}
}

func (c *Client) domain(cred *credential.Record) string {
	if cred.Domain != "" {
		return cred.Domain
	}
	return c.host()
}

// host returns the endpoint without its scheme, used as the X-Domain value.
func (c *Client) host() string {
	if idx := strings.Index(c.endpoint, "://"); idx >= 0 {
		return c.endpoint[idx+3:]
	}
	return c.endpoint
}

// shapeRequest returns a copy of the request adjusted to the backend's
// requirements without mutating the caller's value. Messages are
// normalized first; the minimum-two-messages rule applies to the
// normalized conversation.
func shapeRequest(req *ChatRequest) *ChatRequest {
	shaped := *req
	shaped.Stream = true
	shaped.Messages = normalizeMessages(req.Messages)

	if len(shaped.Messages) == 1 && shaped.Messages[0].Role == RoleUser {
		system := Message{
			Role:    RoleSystem,
			Content: json.RawMessage(fmt.Sprintf("%q", defaultSystemPrompt)),
		}
		shaped.Messages = append([]Message{system}, shaped.Messages...)
	}

	return &shaped
}
