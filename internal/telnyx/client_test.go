package telnyx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedCommand struct {
	path string
	auth string
	body map[string]any
}

func newFakeAPI(t *testing.T, status int) (*httptest.Server, *[]recordedCommand) {
	t.Helper()
	var commands []recordedCommand
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode command body: %v", err)
		}
		commands = append(commands, recordedCommand{
			path: r.URL.Path,
			auth: r.Header.Get("Authorization"),
			body: body,
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &commands
}

func newTestClient(base string) *Client {
	return NewClient(ClientConfig{APIKey: "KEYtest", APIBase: base})
}

func TestClient_AnswerPostsCommand(t *testing.T) {
	srv, commands := newFakeAPI(t, http.StatusOK)
	c := newTestClient(srv.URL)

	if err := c.Answer(context.Background(), "abc"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if len(*commands) != 1 {
		t.Fatalf("expected one command, got %d", len(*commands))
	}
	cmd := (*commands)[0]
	if cmd.path != "/calls/abc/actions/answer" {
		t.Fatalf("unexpected path %q", cmd.path)
	}
	if cmd.auth != "Bearer KEYtest" {
		t.Fatalf("unexpected auth header %q", cmd.auth)
	}
	if id, ok := cmd.body["command_id"].(string); !ok || id == "" {
		t.Fatalf("expected command_id, got %v", cmd.body["command_id"])
	}
}

func TestClient_StartMenuBody(t *testing.T) {
	srv, commands := newFakeAPI(t, http.StatusOK)
	c := newTestClient(srv.URL)

	if err := c.StartMenu(context.Background(), "abc"); err != nil {
		t.Fatalf("start menu: %v", err)
	}

	cmd := (*commands)[0]
	if cmd.path != "/calls/abc/actions/gather_using_speak" {
		t.Fatalf("unexpected path %q", cmd.path)
	}
	if cmd.body["valid_digits"] != "123" {
		t.Fatalf("expected valid_digits 123, got %v", cmd.body["valid_digits"])
	}
	if cmd.body["minimum_digits"] != float64(1) || cmd.body["maximum_digits"] != float64(1) {
		t.Fatalf("expected exactly one digit, got %v..%v", cmd.body["minimum_digits"], cmd.body["maximum_digits"])
	}
	if cmd.body["timeout_millis"] != float64(8000) {
		t.Fatalf("expected 8s collection timeout, got %v", cmd.body["timeout_millis"])
	}
	if p, ok := cmd.body["payload"].(string); !ok || p == "" {
		t.Fatalf("expected prompt text, got %v", cmd.body["payload"])
	}
	if p, ok := cmd.body["invalid_payload"].(string); !ok || p == "" {
		t.Fatalf("expected retry text, got %v", cmd.body["invalid_payload"])
	}
}

func TestClient_TransferPostsDestination(t *testing.T) {
	srv, commands := newFakeAPI(t, http.StatusOK)
	c := newTestClient(srv.URL)

	if err := c.Transfer(context.Background(), "abc", "sip:agent2@sip.telnyx.com"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	cmd := (*commands)[0]
	if cmd.path != "/calls/abc/actions/transfer" {
		t.Fatalf("unexpected path %q", cmd.path)
	}
	if cmd.body["to"] != "sip:agent2@sip.telnyx.com" {
		t.Fatalf("unexpected destination %v", cmd.body["to"])
	}
}

func TestClient_FreshCommandIDPerAttempt(t *testing.T) {
	srv, commands := newFakeAPI(t, http.StatusOK)
	c := newTestClient(srv.URL)

	_ = c.Answer(context.Background(), "abc")
	_ = c.Answer(context.Background(), "abc")

	first := (*commands)[0].body["command_id"]
	second := (*commands)[1].body["command_id"]
	if first == second {
		t.Fatalf("expected a fresh command_id per attempt, got %v twice", first)
	}
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusUnprocessableEntity)
	c := newTestClient(srv.URL)

	if err := c.Answer(context.Background(), "abc"); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}

func TestClient_UnreachableAPIIsError(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	if err := c.Transfer(context.Background(), "abc", "sip:x@y"); err == nil {
		t.Fatalf("expected error on transport failure")
	}
}
