// Package llm talks to the opaque LLM inference endpoint (§4.6, §6): a
// request/response HTTPS call carrying a system and user message, shaped
// either as a free-form completion or as a low-temperature JSON intent
// classification. The wire shape follows the teacher's own
// request/response JSON pattern (one JSON POST, one JSON decode, a
// non-200 status surfaced as an error).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultDeadline is the hard per-call timeout from §4.6; elapsing never
// blocks the dialog — callers get a fallback sentence or Intent instead.
const DefaultDeadline = 10 * time.Second

// FallbackReply is returned by Complete when the deadline elapses or the
// provider errors.
const FallbackReply = "Je suis désolé, pouvez-vous répéter ?"

// Client is the realtime engine's only LLM collaborator: one HTTPS
// endpoint, two call shapes (§4.6).
type Client struct {
	apiKey   string
	url      string
	model    string
	deadline time.Duration
	http     *http.Client
}

// New creates a Client against url using apiKey and model, with the
// default 10s deadline.
func New(apiKey, url, model string) *Client {
	return &Client{
		apiKey:   apiKey,
		url:      url,
		model:    model,
		deadline: DefaultDeadline,
		http:     http.DefaultClient,
	}
}

// WithDeadline overrides the default 10s call deadline.
func (c *Client) WithDeadline(d time.Duration) *Client {
	c.deadline = d
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Complete performs a free-form short reply: <=150 tokens, temperature 0.7
// (§4.6). A deadline timeout or provider error yields FallbackReply rather
// than propagating to the dialog.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) string {
	reply, err := c.complete(ctx, systemPrompt, userText, 150, 0.7)
	if err != nil {
		return FallbackReply
	}
	return reply
}

// Summarize is the end-of-call call shape (§4.6): also a free-form
// completion, reusing Complete's budget and fallback policy.
func (c *Client) Summarize(ctx context.Context, systemPrompt, transcriptDigest string) string {
	return c.Complete(ctx, systemPrompt, transcriptDigest)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userText string, maxTokens int, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	req := chatRequest{
		Model:       c.model,
		System:      systemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: userText}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	var resp chatResponse
	if err := c.post(ctx, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return resp.Content[0].Text, nil
}

// ClassifyJSON runs low-temperature (~0.1), token-limited intent
// classification and parses the result against the Intent schema (§3). A
// deadline timeout or a JSON parse failure yields a safe "unclear" Intent
// rather than an error (§4.6, §7 ParseError policy).
func (c *Client) ClassifyJSON(ctx context.Context, promptTemplate, userText string) Intent {
	text, err := c.complete(ctx, promptTemplate, userText, 200, 0.1)
	if err != nil {
		return fallbackIntent()
	}

	var intent Intent
	if err := json.Unmarshal([]byte(text), &intent); err != nil {
		return fallbackIntent()
	}
	if intent.Kind == "" {
		return fallbackIntent()
	}
	return intent
}

func fallbackIntent() Intent {
	return Intent{Kind: KindUnclear, Confidence: 0, RequiresClarification: true}
}

func (c *Client) post(ctx context.Context, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody interface{}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("llm: status %d: %v", resp.StatusCode, errBody)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Name identifies this collaborator in logs/metrics.
func (c *Client) Name() string { return "llm" }
