// Package telnyx is the Call Control provider adapter: the outbound command
// client and the inbound webhook surface. No routing decisions are made here.
package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

const (
	defaultTimeout = 8 * time.Second

	menuPrompt = "Welcome to Telnyx Contact Center. " +
		"For Sales, press 1. For Support, press 2. For Porting, press 3."
	menuInvalidPrompt = "Sorry, try again. 1 for Sales, 2 for Support, 3 for Porting."
	menuVoice         = "Telnyx.KokoroTTS.af"
	menuValidDigits   = "123"
	menuTimeoutMillis = 8000
)

// ClientConfig carries the credential and endpoint for the Call Control API.
type ClientConfig struct {
	APIKey  string
	APIBase string

	// Timeout bounds each outbound command; defaults to 8s.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client issues call-scoped commands to the Telnyx Call Control v2 API.
// Every attempt carries a fresh command_id. There is no retry/backoff here;
// the provider's webhook redelivery is the retry mechanism. A circuit
// breaker sheds outbound calls while the API is persistently failing.
type Client struct {
	apiKey  string
	base    string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		base:    cfg.APIBase,
		httpc:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "telnyx"}),
		log:     log,
	}
}

// Answer accepts the inbound call leg.
func (c *Client) Answer(ctx context.Context, callControlID string) error {
	return c.command(ctx, callControlID, "answer", map[string]any{})
}

// StartMenu plays the digit-selection prompt and gathers exactly one digit.
func (c *Client) StartMenu(ctx context.Context, callControlID string) error {
	return c.command(ctx, callControlID, "gather_using_speak", map[string]any{
		"payload":         menuPrompt,
		"invalid_payload": menuInvalidPrompt,
		"payload_type":    "text",
		"service_level":   "premium",
		"voice":           menuVoice,
		"minimum_digits":  1,
		"maximum_digits":  1,
		"valid_digits":    menuValidDigits,
		"timeout_millis":  menuTimeoutMillis,
	})
}

// Transfer bridges the call to a department destination.
func (c *Client) Transfer(ctx context.Context, callControlID, destinationURI string) error {
	return c.command(ctx, callControlID, "transfer", map[string]any{
		"to": destinationURI,
	})
}

func (c *Client) command(ctx context.Context, callControlID, action string, body map[string]any) error {
	body["command_id"] = uuid.NewString()

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("telnyx: encode %s: %w", action, err)
	}

	url := fmt.Sprintf("%s/calls/%s/actions/%s", c.base, callControlID, action)
	_, err = c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// Body is useful when Telnyx rejects a command; keep it bounded.
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
		}
		return nil, nil
	})
	if err != nil {
		c.log.Error("telnyx command failed", "action", action, "call_control_id", callControlID, "err", err)
		return fmt.Errorf("telnyx: %s: %w", action, err)
	}
	return nil
}
