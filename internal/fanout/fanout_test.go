package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/backend/backendtest"
	"github.com/taskmate/tmbot/internal/chat/chattest"
	"github.com/taskmate/tmbot/internal/config"
	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/render"
	"github.com/taskmate/tmbot/internal/store"
)

func putSession(t *testing.T, st store.SessionDirectory, chatID, userID int64) {
	t.Helper()
	s := &domain.Session{Token: "tok", UserID: userID, Role: domain.RoleEmployee}
	if err := st.PutSession(context.Background(), chatID, s, time.Hour); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		drop bool
	}{
		{name: "valid", body: `{"event":"task.assigned","task":{"id":5},"user_ids":[1]}`},
		{name: "malformed", body: `{"event":`, drop: true},
		{name: "no task id", body: `{"event":"task.assigned","task":{},"user_ids":[1]}`, drop: true},
		{name: "no targets", body: `{"event":"task.assigned","task":{"id":5},"user_ids":[]}`, drop: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseEvent([]byte(tt.body))
			var drop *ErrDrop
			if got := errors.As(err, &drop); got != tt.drop {
				t.Errorf("Expected drop=%v, got err %v", tt.drop, err)
			}
		})
	}
}

func TestEventDedup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev       Event
		category domain.Category
		key      string
	}{
		{Event{Kind: KindAssigned, Task: domain.Task{ID: 5}}, domain.CategoryTask, "5"},
		{Event{Kind: KindApproved, Task: domain.Task{ID: 5}}, domain.CategoryTask, "5"},
		{Event{Kind: KindPendingReview, Task: domain.Task{ID: 42}}, domain.CategoryReview, "42"},
		{Event{Kind: KindDelegationRequested, Task: domain.Task{ID: 5}, DelegationID: 9}, domain.CategoryDelegation, "9"},
		{Event{Kind: KindDelegationCancelled, Task: domain.Task{ID: 5}}, domain.CategoryDelegation, "5"},
	}

	for _, tt := range tests {
		category, key := tt.ev.Dedup()
		if category != tt.category || key != tt.key {
			t.Errorf("%s: expected %s/%s, got %s/%s", tt.ev.Kind, tt.category, tt.key, category, key)
		}
	}
}

func TestEventMessageKeyboards(t *testing.T) {
	t.Parallel()

	msg, ok := Event{Kind: KindPendingReview, Task: domain.Task{ID: 42, Title: "Audit"}, ResponseID: 3}.Message()
	if !ok || len(msg.Inline) == 0 {
		t.Fatalf("Expected review keyboard, got %+v", msg)
	}
	if got := msg.Inline[0][0].Data; got != render.ActReviewApprove+":3" {
		t.Errorf("Expected approve button for response 3, got %q", got)
	}

	msg, _ = Event{Kind: KindDelegationRequested, Task: domain.Task{ID: 5}, DelegationID: 9}.Message()
	if got := msg.Inline[0][0].Data; got != render.ActDelegAccept+":9" {
		t.Errorf("Expected accept button for delegation 9, got %q", got)
	}

	if _, ok := (Event{Kind: "task.archived", Task: domain.Task{ID: 5}}).Message(); ok {
		t.Error("Expected unknown kind to have no message")
	}
}

func TestPendingReviewSkipsUnsessionedUser(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	putSession(t, st, 100, 7)
	rec := chattest.NewRecorder()
	d := NewDispatcher(NewSnapshotCache(st, time.Minute), st, rec, nil)
	ctx := context.Background()

	ev := Event{Kind: KindPendingReview, Task: domain.Task{ID: 42, Title: "Audit"}, UserIDs: []int64{7, 8}, ResponseID: 3}
	res, err := d.Process(ctx, ev)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Delivered != 1 || res.Unresolved != 1 {
		t.Errorf("Expected 1 delivered and 1 unresolved, got %+v", res)
	}
	if n := len(rec.Sent()); n != 1 {
		t.Fatalf("Expected 1 message, got %d", n)
	}
	if !rec.Contains(100, "Audit") {
		t.Error("Expected message to chat 100")
	}
	seen, _ := st.WasDelivered(ctx, 100, domain.CategoryReview, "42")
	if !seen {
		t.Error("Expected review 42 marked for chat 100")
	}
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	putSession(t, st, 100, 7)
	putSession(t, st, 101, 8)
	rec := chattest.NewRecorder()
	d := NewDispatcher(NewSnapshotCache(st, time.Minute), st, rec, nil)
	ctx := context.Background()

	ev := Event{Kind: KindAssigned, Task: domain.Task{ID: 5, Title: "Wash"}, UserIDs: []int64{7, 8}}
	for i := 0; i < 2; i++ {
		if _, err := d.Process(ctx, ev); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	if len(rec.To(100)) != 1 || len(rec.To(101)) != 1 {
		t.Errorf("Expected one message per chat, got %d and %d", len(rec.To(100)), len(rec.To(101)))
	}
}

func TestFailedSendIsNotMarked(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	putSession(t, st, 100, 7)
	putSession(t, st, 101, 8)
	rec := chattest.NewRecorder()
	rec.SendErr[100] = errors.New("bot was blocked by the user")
	d := NewDispatcher(NewSnapshotCache(st, time.Minute), st, rec, nil)
	ctx := context.Background()

	res, err := d.Process(ctx, Event{Kind: KindApproved, Task: domain.Task{ID: 5}, UserIDs: []int64{7, 8}})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Failed != 1 || res.Delivered != 1 {
		t.Errorf("Expected 1 failed and 1 delivered, got %+v", res)
	}
	if seen, _ := st.WasDelivered(ctx, 100, domain.CategoryTask, "5"); seen {
		t.Error("Expected failed delivery to stay unmarked")
	}
}

type countingLister struct {
	mu       sync.Mutex
	calls    int
	sessions map[int64]*domain.Session
	err      error
}

func (l *countingLister) ListSessions(context.Context) (map[int64]*domain.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.sessions, l.err
}

func TestSnapshotCacheTTL(t *testing.T) {
	t.Parallel()

	src := &countingLister{sessions: map[int64]*domain.Session{
		100: {UserID: 7},
		101: {UserID: 7},
		102: {UserID: 8},
	}}
	c := NewSnapshotCache(src, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	chats, err := c.Chats(ctx, 7)
	if err != nil {
		t.Fatalf("Chats() error = %v", err)
	}
	if len(chats) != 2 || chats[0] != 100 || chats[1] != 101 {
		t.Errorf("Expected chats [100 101], got %v", chats)
	}
	_, _ = c.Chats(ctx, 8)
	if src.calls != 1 {
		t.Errorf("Expected 1 listing within TTL, got %d", src.calls)
	}

	now = now.Add(2 * time.Minute)
	_, _ = c.Chats(ctx, 8)
	if src.calls != 2 {
		t.Errorf("Expected reload after TTL, got %d listings", src.calls)
	}

	c.Invalidate()
	_, _ = c.Chats(ctx, 8)
	if src.calls != 3 {
		t.Errorf("Expected reload after Invalidate, got %d listings", src.calls)
	}
}

func TestSnapshotErrorFailsProcess(t *testing.T) {
	t.Parallel()

	src := &countingLister{err: errors.New("connection refused")}
	d := NewDispatcher(NewSnapshotCache(src, time.Minute), store.NewMemory(), chattest.NewRecorder(), nil)
	if _, err := d.Process(context.Background(), Event{Kind: KindAssigned, Task: domain.Task{ID: 1}, UserIDs: []int64{7}}); err == nil {
		t.Error("Expected snapshot error to be returned")
	}
}

type fakeExpirer struct {
	mu    sync.Mutex
	chats []int64
}

func (f *fakeExpirer) ExpireSession(_ context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chatID)
	return nil
}

func TestDeadlineScan(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) string { return now.Add(d).Format(time.RFC3339) }

	gw := &backendtest.Fake{
		TasksFn: func(_ string, f backend.TaskFilter) ([]domain.Task, error) {
			if f.PerPage != 50 {
				t.Errorf("Expected per_page 50, got %d", f.PerPage)
			}
			return []domain.Task{
				{ID: 1, Title: "Soon", Status: domain.StatusPending, Deadline: at(10 * time.Minute)},
				{ID: 2, Title: "Due now", Status: domain.StatusAcknowledged, Deadline: at(0)},
				{ID: 3, Title: "Later", Status: domain.StatusPending, Deadline: at(2 * time.Hour)},
				{ID: 4, Title: "Done", Status: domain.StatusCompleted, Deadline: at(5 * time.Minute)},
				{ID: 5, Title: "Late", Status: domain.StatusPending, Deadline: at(-time.Hour)},
				{ID: 6, Title: "Late but reviewed", Status: domain.StatusPendingReview, Deadline: at(-time.Hour)},
				{ID: 7, Title: "No deadline", Status: domain.StatusPending},
			}, nil
		},
	}
	st := store.NewMemory()
	putSession(t, st, 100, 7)
	rec := chattest.NewRecorder()
	s := NewDeadlineScanner(st, st, gw, rec, &fakeExpirer{}, 30*time.Minute, nil,
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	res, err := s.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce() error = %v", err)
	}
	if res.Warnings != 2 || res.Overdue != 1 {
		t.Errorf("Expected 2 warnings and 1 overdue, got %+v", res)
	}
	if len(rec.To(100)) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(rec.To(100)))
	}

	res, err = s.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce() error = %v", err)
	}
	if res.Warnings != 0 || res.Overdue != 0 {
		t.Errorf("Expected second scan to send nothing, got %+v", res)
	}
	if len(rec.To(100)) != 3 {
		t.Errorf("Expected no new messages, got %d", len(rec.To(100)))
	}
}

func TestDeadlineScanExpiresRejectedSession(t *testing.T) {
	t.Parallel()

	gw := &backendtest.Fake{
		TasksFn: func(token string, _ backend.TaskFilter) ([]domain.Task, error) {
			if token == "stale" {
				return nil, backendtest.Unauthorized()
			}
			if token == "broken" {
				return nil, backendtest.Failure(500, "")
			}
			return nil, nil
		},
	}
	st := store.NewMemory()
	ctx := context.Background()
	for chatID, token := range map[int64]string{100: "stale", 101: "broken", 102: "ok"} {
		if err := st.PutSession(ctx, chatID, &domain.Session{Token: token, UserID: chatID}, time.Hour); err != nil {
			t.Fatalf("PutSession() error = %v", err)
		}
	}
	exp := &fakeExpirer{}
	s := NewDeadlineScanner(st, st, gw, chattest.NewRecorder(), exp, 30*time.Minute, nil)

	res, err := s.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce() error = %v", err)
	}
	if res.Sessions != 3 || res.Expired != 1 || res.Skipped != 1 {
		t.Errorf("Unexpected scan result %+v", res)
	}
	if len(exp.chats) != 1 || exp.chats[0] != 100 {
		t.Errorf("Expected chat 100 expired, got %v", exp.chats)
	}
}

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acked++; return nil }

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error { return nil }

type processorFunc func(ctx context.Context, ev Event) (Result, error)

func (f processorFunc) Process(ctx context.Context, ev Event) (Result, error) { return f(ctx, ev) }

func TestConsumerAcknowledgement(t *testing.T) {
	t.Parallel()

	valid := []byte(`{"event":"task.assigned","task":{"id":5},"user_ids":[7]}`)
	tests := []struct {
		name    string
		body    []byte
		procErr error
		acked   int
		nacked  int
		calls   int
	}{
		{name: "processed", body: valid, acked: 1, calls: 1},
		{name: "malformed", body: []byte(`not json`), acked: 1},
		{name: "missing targets", body: []byte(`{"event":"task.assigned","task":{"id":5}}`), acked: 1},
		{name: "infrastructure failure", body: valid, procErr: errors.New("redis down"), nacked: 1, calls: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			proc := processorFunc(func(context.Context, Event) (Result, error) {
				calls++
				return Result{Delivered: 1}, tt.procErr
			})
			c := NewConsumer("amqp://localhost", config.BrokerConfig{Prefetch: 10}, proc, nil)

			// A cancelled context skips the requeue pause.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			ack := &fakeAcknowledger{}
			c.handle(ctx, amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: tt.body})

			if ack.acked != tt.acked || ack.nacked != tt.nacked {
				t.Errorf("Expected ack=%d nack=%d, got ack=%d nack=%d", tt.acked, tt.nacked, ack.acked, ack.nacked)
			}
			if tt.nacked > 0 && !ack.requeue {
				t.Error("Expected nack to requeue")
			}
			if calls != tt.calls {
				t.Errorf("Expected %d processor calls, got %d", tt.calls, calls)
			}
		})
	}
}
