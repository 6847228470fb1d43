package email

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/hermes/internal/scheduler"
)

type sent struct{ to, subject, body string }

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{to, subject, body})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var now = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func newTool(s Sender, r Registrar) *Tool {
	return New(s, r, WithLocation(time.UTC), WithNow(func() time.Time { return now }))
}

func TestImmediateSend(t *testing.T) {
	s := &fakeSender{}
	out, err := newTool(s, nil).Invoke(context.Background(), json.RawMessage(`{"receiver_email":"a@b.c","subject":"hi","content":"body"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "email sent at 2025-05-01 08:00:00" {
		t.Fatalf("got %q", out)
	}
	if s.count() != 1 || s.sent[0].to != "a@b.c" {
		t.Fatalf("sent = %+v", s.sent)
	}
}

func TestSendFailureIsText(t *testing.T) {
	s := &fakeSender{err: errors.New("connection refused")}
	out, err := newTool(s, nil).Invoke(context.Background(), json.RawMessage(`{"receiver_email":"a@b.c","subject":"hi","content":"body"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(out, "connection refused") {
		t.Fatalf("got %q", out)
	}
}

func TestScheduledSendFiresAtTime(t *testing.T) {
	clk := scheduler.NewManualClock(now)
	sched := scheduler.New(scheduler.WithClock(clk))
	defer sched.Shutdown(context.Background())

	s := &fakeSender{}
	args := `{"receiver_email":"a@b.c","subject":"later","content":"body","year":2025,"month":5,"day":1,"hour":9,"minute":30,"second":0}`
	out, err := newTool(s, sched).Invoke(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "email scheduled for 2025-05-01 09:30:00" {
		t.Fatalf("got %q", out)
	}
	if s.count() != 0 {
		t.Fatalf("mail sent before its time")
	}
	jobs := sched.Jobs()
	if len(jobs) != 1 || jobs[0].Name != ToolName {
		t.Fatalf("jobs = %+v", jobs)
	}

	clk.Set(time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC))
	if n := sched.RunDue(); n != 1 {
		t.Fatalf("ran %d jobs", n)
	}
	if err := sched.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if s.count() != 1 || s.sent[0].subject != "later" {
		t.Fatalf("sent = %+v", s.sent)
	}
}

func TestPartialTimeRejected(t *testing.T) {
	s := &fakeSender{}
	sched := scheduler.New()
	defer sched.Shutdown(context.Background())

	out, err := newTool(s, sched).Invoke(context.Background(), json.RawMessage(`{"receiver_email":"a@b.c","subject":"x","content":"y","hour":9,"minute":0}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.HasPrefix(out, "invalid send time") {
		t.Fatalf("got %q", out)
	}
	if s.count() != 0 || len(sched.Jobs()) != 0 {
		t.Fatalf("partial time must neither send nor schedule")
	}
}

func TestWhenRejectsImpossibleDate(t *testing.T) {
	v := func(n int) *int { return &n }
	r := Request{Year: v(2025), Month: v(2), Day: v(30), Hour: v(1), Minute: v(0), Second: v(0)}
	if _, _, err := r.When(time.UTC); err == nil {
		t.Fatalf("expected error for Feb 30")
	}
}

func TestMissingRecipient(t *testing.T) {
	out, _ := newTool(&fakeSender{}, nil).Invoke(context.Background(), json.RawMessage(`{"receiver_email":"","subject":"x","content":"y"}`))
	if out != "a recipient address is required" {
		t.Fatalf("got %q", out)
	}
}

func TestCompose(t *testing.T) {
	msg := string(Compose("Hermes", "bot@example.com", "a@b.c", "hello", "body"))
	for _, want := range []string{"From: \"Hermes\" <bot@example.com>\r\n", "To: a@b.c\r\n", "Subject: hello\r\n", "\r\n\r\nbody"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}
