// Package ivr implements the call-routing state machine: it consumes inbound
// webhook events, drives the provider (answer, menu, transfer), and records
// everything to the event store.
//
// Per call the logical state is new → menu-presented → {routed | ended};
// an unrecognized digit loops menu-presented back onto itself. routed and
// ended are terminal and gate all further digit processing.
package ivr

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"call-router/internal/callstate"
)

// Webhook event types that drive state transitions.
const (
	EventCallInitiated = "call.initiated"
	EventGatherEnded   = "call.gather.ended"
	EventCallHangup    = "call.hangup"
)

// Ack statuses returned to the webhook caller. Always delivered with HTTP
// 200 so the provider does not retry-storm on internal failures.
const (
	StatusReceived        = "received"
	StatusAnswered        = "answered_and_menu_started"
	StatusAnswerFailed    = "answer_failed"
	StatusGatherProcessed = "gather_processed"
	StatusGatherIgnored   = "gather_ignored"
	StatusMissingCallID   = "missing_call_control_id"
	StatusError           = "error"
)

// Event is one inbound webhook delivery, already unwrapped from the
// provider envelope.
type Event struct {
	Type    string
	Payload map[string]any
}

// Ack is the acknowledgement document for one delivery.
type Ack struct {
	Status string  `json:"status"`
	Digit  *string `json:"digit,omitempty"`
	Event  string  `json:"event,omitempty"`
}

// CallController issues outbound control commands to the telephony provider.
type CallController interface {
	Answer(ctx context.Context, callControlID string) error
	StartMenu(ctx context.Context, callControlID string) error
	Transfer(ctx context.Context, callControlID, destinationURI string) error
}

// EventLog is the write-side of the event store consumed by the router.
// Failures are logged and never block routing; the store is observability,
// not routing truth.
type EventLog interface {
	SaveCallIfNew(ctx context.Context, callControlID, fromNumber, toNumber string) error
	AppendEvent(ctx context.Context, callControlID, eventType string, payload []byte) error
	AppendIVRSelection(ctx context.Context, callControlID, digit, department string) error
	AppendTransfer(ctx context.Context, callControlID, destinationURI, status string) error
}

// Router is safe for concurrent use; the routed/ended sets carry all
// cross-delivery state.
type Router struct {
	provider     CallController
	store        EventLog
	routed       callstate.Set
	ended        callstate.Set
	destinations map[Department]string
	log          *slog.Logger
}

func NewRouter(provider CallController, store EventLog, routed, ended callstate.Set, destinations map[Department]string, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		provider:     provider,
		store:        store,
		routed:       routed,
		ended:        ended,
		destinations: destinations,
		log:          log,
	}
}

// HandleEvent processes one webhook delivery and always returns an Ack;
// internal failures surface only as ack statuses, never as errors.
//
// Known race, kept from the reference behavior: the IVR selection is
// appended before the transfer outcome is known, so two near-simultaneous
// duplicate gather deliveries can both record a selection. The routed-set
// guard still keeps completed transfers at-most-once.
func (r *Router) HandleEvent(ctx context.Context, ev Event) Ack {
	switch ev.Type {
	case EventCallInitiated:
		return r.handleInitiated(ctx, ev)
	case EventGatherEnded:
		return r.handleGatherEnded(ctx, ev)
	case EventCallHangup:
		return r.handleHangup(ctx, ev)
	case "":
		return Ack{Status: StatusReceived}
	default:
		// Logged verbatim for observability; no state transition.
		if id := callControlID(ev.Payload); id != "" {
			r.appendEvent(ctx, id, ev)
		}
		return Ack{Status: StatusReceived, Event: ev.Type}
	}
}

func (r *Router) handleInitiated(ctx context.Context, ev Event) Ack {
	id := callControlID(ev.Payload)
	if id == "" {
		return Ack{Status: StatusMissingCallID}
	}

	from := stringOr(ev.Payload, "from", "unknown")
	to := stringOr(ev.Payload, "to", "unknown")

	if err := r.store.SaveCallIfNew(ctx, id, from, to); err != nil {
		r.log.Error("save call failed", "call_control_id", id, "err", err)
	}
	r.appendEvent(ctx, id, ev)

	if err := r.provider.Answer(ctx, id); err != nil {
		// A later duplicate call.initiated is the retry path.
		r.log.Error("answer failed", "call_control_id", id, "err", err)
		return Ack{Status: StatusAnswerFailed}
	}
	if err := r.provider.StartMenu(ctx, id); err != nil {
		// The gather timeout will re-present the menu.
		r.log.Error("start menu failed", "call_control_id", id, "err", err)
	}
	return Ack{Status: StatusAnswered}
}

func (r *Router) handleGatherEnded(ctx context.Context, ev Event) Ack {
	id := callControlID(ev.Payload)
	if id == "" || r.isTerminal(ctx, id) {
		return Ack{Status: StatusGatherIgnored}
	}

	r.appendEvent(ctx, id, ev)

	digit := ExtractDigits(ev.Payload)
	dept, ok := DepartmentForDigit(digit)
	if !ok {
		// Invalid, empty, or timeout digit: replay the menu, no state change.
		if err := r.provider.StartMenu(ctx, id); err != nil {
			r.log.Error("menu replay failed", "call_control_id", id, "err", err)
		}
		return Ack{Status: StatusGatherProcessed, Digit: &digit}
	}

	if err := r.store.AppendIVRSelection(ctx, id, digit, string(dept)); err != nil {
		r.log.Error("log ivr selection failed", "call_control_id", id, "err", err)
	}

	dest := r.destinations[dept]
	transferErr := r.provider.Transfer(ctx, id, dest)

	status := "success"
	if transferErr != nil {
		status = "error"
		r.log.Error("transfer failed", "call_control_id", id, "department", dept, "err", transferErr)
	}
	if err := r.store.AppendTransfer(ctx, id, dest, status); err != nil {
		r.log.Error("log transfer failed", "call_control_id", id, "err", err)
	}

	if transferErr == nil {
		if err := r.routed.Add(ctx, id); err != nil {
			r.log.Error("mark routed failed", "call_control_id", id, "err", err)
		}
	}
	return Ack{Status: StatusGatherProcessed, Digit: &digit}
}

func (r *Router) handleHangup(ctx context.Context, ev Event) Ack {
	if id := callControlID(ev.Payload); id != "" {
		r.appendEvent(ctx, id, ev)
		if err := r.ended.Add(ctx, id); err != nil {
			r.log.Error("mark ended failed", "call_control_id", id, "err", err)
		}
	}
	return Ack{Status: StatusReceived}
}

// isTerminal reports whether the call is already routed or ended. Set read
// failures are logged and treated as absent: proceeding keeps the provider's
// redelivery as the retry mechanism instead of silently dropping the call.
func (r *Router) isTerminal(ctx context.Context, id string) bool {
	routed, err := r.routed.Contains(ctx, id)
	if err != nil {
		r.log.Error("routed-set read failed", "call_control_id", id, "err", err)
	}
	if routed {
		return true
	}
	ended, err := r.ended.Contains(ctx, id)
	if err != nil {
		r.log.Error("ended-set read failed", "call_control_id", id, "err", err)
	}
	return ended
}

func (r *Router) appendEvent(ctx context.Context, id string, ev Event) {
	var payload []byte
	if len(ev.Payload) > 0 {
		payload, _ = json.Marshal(ev.Payload)
	}
	if err := r.store.AppendEvent(ctx, id, ev.Type, payload); err != nil {
		r.log.Error("log event failed", "call_control_id", id, "event_type", ev.Type, "err", err)
	}
}

func callControlID(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	v, _ := payload["call_control_id"].(string)
	return strings.TrimSpace(v)
}

func stringOr(payload map[string]any, key, def string) string {
	v, _ := payload[key].(string)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
