package ivr

import (
	"context"
	"errors"
	"testing"

	"call-router/internal/callstate"
	"call-router/internal/store"
)

type fakeProvider struct {
	answerErr   error
	menuErr     error
	transferErr error

	answers    []string
	menus      []string
	transfers  []string
	transferTo []string
}

func (f *fakeProvider) Answer(ctx context.Context, id string) error {
	f.answers = append(f.answers, id)
	return f.answerErr
}

func (f *fakeProvider) StartMenu(ctx context.Context, id string) error {
	f.menus = append(f.menus, id)
	return f.menuErr
}

func (f *fakeProvider) Transfer(ctx context.Context, id, to string) error {
	f.transfers = append(f.transfers, id)
	f.transferTo = append(f.transferTo, to)
	return f.transferErr
}

var testDestinations = map[Department]string{
	DepartmentSales:   "sip:agent1@sip.telnyx.com",
	DepartmentSupport: "sip:agent2@sip.telnyx.com",
	DepartmentPorting: "sip:agent3@sip.telnyx.com",
}

func newTestRouter(p *fakeProvider) (*Router, *store.MemoryStore) {
	st := store.NewMemoryStore()
	r := NewRouter(p, st, callstate.NewMemorySet(), callstate.NewMemorySet(), testDestinations, nil)
	return r, st
}

func initiated(id string) Event {
	return Event{Type: EventCallInitiated, Payload: map[string]any{
		"call_control_id": id, "from": "+1555", "to": "+1800",
	}}
}

func gather(id, digit string) Event {
	return Event{Type: EventGatherEnded, Payload: map[string]any{
		"call_control_id": id, "digit": digit,
	}}
}

func hangup(id string) Event {
	return Event{Type: EventCallHangup, Payload: map[string]any{"call_control_id": id}}
}

func TestHandleEvent_InitiatedAnswersAndStartsMenu(t *testing.T) {
	p := &fakeProvider{}
	r, st := newTestRouter(p)

	ack := r.HandleEvent(context.Background(), initiated("abc"))
	if ack.Status != StatusAnswered {
		t.Fatalf("expected %q, got %q", StatusAnswered, ack.Status)
	}
	if len(p.answers) != 1 || len(p.menus) != 1 {
		t.Fatalf("expected one answer and one menu, got %d/%d", len(p.answers), len(p.menus))
	}
	if len(st.Calls) != 1 || st.Calls[0].FromNumber != "+1555" || st.Calls[0].ToNumber != "+1800" {
		t.Fatalf("unexpected call rows: %+v", st.Calls)
	}
	if len(st.Events) != 1 || st.Events[0].EventType != EventCallInitiated {
		t.Fatalf("unexpected event rows: %+v", st.Events)
	}
}

func TestHandleEvent_InitiatedMissingCallID(t *testing.T) {
	p := &fakeProvider{}
	r, st := newTestRouter(p)

	ack := r.HandleEvent(context.Background(), Event{Type: EventCallInitiated, Payload: map[string]any{"from": "+1555"}})
	if ack.Status != StatusMissingCallID {
		t.Fatalf("expected %q, got %q", StatusMissingCallID, ack.Status)
	}
	if len(p.answers) != 0 || len(st.Calls) != 0 || len(st.Events) != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestHandleEvent_InitiatedDuplicateKeepsOneCallRecord(t *testing.T) {
	p := &fakeProvider{}
	r, st := newTestRouter(p)

	r.HandleEvent(context.Background(), initiated("abc"))
	r.HandleEvent(context.Background(), initiated("abc"))

	if len(st.Calls) != 1 {
		t.Fatalf("expected one call record after duplicate delivery, got %d", len(st.Calls))
	}
	if len(st.Events) != 2 {
		t.Fatalf("duplicate deliveries are still logged, got %d events", len(st.Events))
	}
}

func TestHandleEvent_AnswerFailureStopsFlow(t *testing.T) {
	p := &fakeProvider{answerErr: errors.New("boom")}
	r, st := newTestRouter(p)

	ack := r.HandleEvent(context.Background(), initiated("abc"))
	if ack.Status != StatusAnswerFailed {
		t.Fatalf("expected %q, got %q", StatusAnswerFailed, ack.Status)
	}
	if len(p.menus) != 0 {
		t.Fatalf("menu must not start after failed answer")
	}
	// Call and event are still recorded; a duplicate delivery can retry.
	if len(st.Calls) != 1 {
		t.Fatalf("expected call record, got %d", len(st.Calls))
	}
}

func TestHandleEvent_GatherRoutesToDepartment(t *testing.T) {
	p := &fakeProvider{}
	r, st := newTestRouter(p)
	ctx := context.Background()

	r.HandleEvent(ctx, initiated("abc"))
	ack := r.HandleEvent(ctx, gather("abc", "2"))

	if ack.Status != StatusGatherProcessed || ack.Digit == nil || *ack.Digit != "2" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if len(st.Selections) != 1 || st.Selections[0].Digit != "2" || st.Selections[0].Department != "support" {
		t.Fatalf("unexpected selections: %+v", st.Selections)
	}
	if len(p.transfers) != 1 || p.transferTo[0] != "sip:agent2@sip.telnyx.com" {
		t.Fatalf("unexpected transfers: %v -> %v", p.transfers, p.transferTo)
	}
	if len(st.Transfers) != 1 || st.Transfers[0].Status != store.TransferStatusSuccess {
		t.Fatalf("unexpected transfer rows: %+v", st.Transfers)
	}
}

func TestHandleEvent_GatherDuplicateAfterRoutingIsIgnored(t *testing.T) {
	p := &fakeProvider{}
	r, st := newTestRouter(p)
	ctx := context.Background()

	r.HandleEvent(ctx, initiated("abc"))
	r.HandleEvent(ctx, gather("abc", "2"))

	ack := r.HandleEvent(ctx, gather("abc", "2"))
	if ack.Status != StatusGatherIgnored {
		t.Fatalf("expected %q, got %q", StatusGatherIgnored, ack.Status)
	}
	if len(p.transfers) != 1 {
		t.Fatalf("expected exactly one transfer attempt, got %d", len(p.transfers))
	}
	if len(st.Selections) != 1 || len(st.Transfers) != 1 {
		t.Fatalf("no new rows expected, got %d selections %d transfers", len(st.Selections), len(st.Transfers))
	}
}

func TestHandleEvent_UnmappedDigitReplaysMenu(t *testing.T) {
	for _, digit := range []string{"", "9", "*"} {
		p := &fakeProvider{}
		r, st := newTestRouter(p)
		ctx := context.Background()

		r.HandleEvent(ctx, initiated("abc"))
		menusBefore := len(p.menus)

		ack := r.HandleEvent(ctx, gather("abc", digit))
		if ack.Status != StatusGatherProcessed {
			t.Fatalf("digit %q: expected %q, got %q", digit, StatusGatherProcessed, ack.Status)
		}
		if len(p.menus) != menusBefore+1 {
			t.Fatalf("digit %q: expected menu replay", digit)
		}
		if len(p.transfers) != 0 || len(st.Selections) != 0 || len(st.Transfers) != 0 {
			t.Fatalf("digit %q: no routing side effects expected", digit)
		}
	}
}

func TestHandleEvent_FailedTransferAllowsReprocessing(t *testing.T) {
	p := &fakeProvider{transferErr: errors.New("503")}
	r, st := newTestRouter(p)
	ctx := context.Background()

	r.HandleEvent(ctx, initiated("abc"))
	r.HandleEvent(ctx, gather("abc", "1"))

	if len(st.Transfers) != 1 || st.Transfers[0].Status != store.TransferStatusError {
		t.Fatalf("expected one failed transfer row, got %+v", st.Transfers)
	}

	// Call is not routed, so a redelivered gather is processed again.
	p.transferErr = nil
	ack := r.HandleEvent(ctx, gather("abc", "1"))
	if ack.Status != StatusGatherProcessed {
		t.Fatalf("expected reprocessing after failed transfer, got %q", ack.Status)
	}
	if len(p.transfers) != 2 {
		t.Fatalf("expected a second transfer attempt, got %d", len(p.transfers))
	}
	if st.Transfers[1].Status != store.TransferStatusSuccess {
		t.Fatalf("expected second attempt to succeed, got %+v", st.Transfers[1])
	}
}

func TestHandleEvent_HangupEndsCallAndIsIdempotent(t *testing.T) {
	p := &fakeProvider{}
	r, st := newTestRouter(p)
	ctx := context.Background()

	r.HandleEvent(ctx, initiated("abc"))

	for i := 0; i < 2; i++ {
		ack := r.HandleEvent(ctx, hangup("abc"))
		if ack.Status != StatusReceived {
			t.Fatalf("expected %q, got %q", StatusReceived, ack.Status)
		}
	}

	ack := r.HandleEvent(ctx, gather("abc", "2"))
	if ack.Status != StatusGatherIgnored {
		t.Fatalf("gather after hangup must be ignored, got %q", ack.Status)
	}
	if len(p.transfers) != 0 || len(st.Selections) != 0 {
		t.Fatalf("no routing side effects expected after hangup")
	}
}

func TestHandleEvent_GatherWithoutCallIDIsIgnored(t *testing.T) {
	p := &fakeProvider{}
	r, _ := newTestRouter(p)

	ack := r.HandleEvent(context.Background(), Event{Type: EventGatherEnded, Payload: map[string]any{"digit": "2"}})
	if ack.Status != StatusGatherIgnored {
		t.Fatalf("expected %q, got %q", StatusGatherIgnored, ack.Status)
	}
}

func TestHandleEvent_UnknownEventTypeIsLoggedOnly(t *testing.T) {
	p := &fakeProvider{}
	r, st := newTestRouter(p)

	ack := r.HandleEvent(context.Background(), Event{Type: "call.speak.ended", Payload: map[string]any{"call_control_id": "abc"}})
	if ack.Status != StatusReceived || ack.Event != "call.speak.ended" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if len(st.Events) != 1 || st.Events[0].EventType != "call.speak.ended" {
		t.Fatalf("unexpected events: %+v", st.Events)
	}
	if len(p.answers)+len(p.menus)+len(p.transfers) != 0 {
		t.Fatalf("no provider commands expected")
	}
}

func TestHandleEvent_EmptyEventTypeAcknowledged(t *testing.T) {
	p := &fakeProvider{}
	r, _ := newTestRouter(p)

	ack := r.HandleEvent(context.Background(), Event{})
	if ack.Status != StatusReceived || ack.Event != "" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}
