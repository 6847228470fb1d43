package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/internal/scheduler"
	"github.com/mohammad-safakhou/hermes/tools/clock"
)

const ToolName = "send_email"

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Registrar accepts deferred jobs.
type Registrar interface {
	Register(job scheduler.Job) (scheduler.JobInfo, error)
}

// Tool sends mail immediately, or at a given time when every time field is set.
type Tool struct {
	sender    Sender
	scheduler Registrar
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Tool)

func WithLocation(loc *time.Location) Option {
	return func(t *Tool) {
		if loc != nil {
			t.loc = loc
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(t *Tool) {
		if now != nil {
			t.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tool) {
		if l != nil {
			t.logger = l
		}
	}
}

func New(sender Sender, sched Registrar, opts ...Option) *Tool {
	t := &Tool{sender: sender, scheduler: sched, loc: time.Local, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("email")
	return t
}

func (t *Tool) Name() string { return ToolName }

func (t *Tool) Description() string {
	return "Sends an email. Recipient, subject and content are required. Leave every time field empty to send now. " +
		"To send later, first call " + clock.ToolName + " and then fill in all of year, month, day, hour, minute and second."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"receiver_email": {"type": "string", "description": "recipient address"},
			"subject": {"type": "string"},
			"content": {"type": "string"},
			"year": {"type": "integer"},
			"month": {"type": "integer", "minimum": 1, "maximum": 12},
			"day": {"type": "integer", "minimum": 1, "maximum": 31},
			"hour": {"type": "integer", "minimum": 0, "maximum": 23},
			"minute": {"type": "integer", "minimum": 0, "maximum": 59},
			"second": {"type": "integer", "minimum": 0, "maximum": 59}
		},
		"required": ["receiver_email", "subject", "content"]
	}`)
}

// Request is the decoded argument object.
type Request struct {
	To      string `json:"receiver_email"`
	Subject string `json:"subject"`
	Content string `json:"content"`
	Year    *int   `json:"year"`
	Month   *int   `json:"month"`
	Day     *int   `json:"day"`
	Hour    *int   `json:"hour"`
	Minute  *int   `json:"minute"`
	Second  *int   `json:"second"`
}

func (r Request) fields() []*int {
	return []*int{r.Year, r.Month, r.Day, r.Hour, r.Minute, r.Second}
}

// When reports the requested send time. ok is false when no field is set;
// an error is returned when only some are.
func (r Request) When(loc *time.Location) (at time.Time, ok bool, err error) {
	set := 0
	for _, f := range r.fields() {
		if f != nil {
			set++
		}
	}
	switch set {
	case 0:
		return time.Time{}, false, nil
	case 6:
		at = time.Date(*r.Year, time.Month(*r.Month), *r.Day, *r.Hour, *r.Minute, *r.Second, 0, loc)
		if at.Day() != *r.Day {
			return time.Time{}, false, fmt.Errorf("%04d-%02d-%02d is not a calendar date", *r.Year, *r.Month, *r.Day)
		}
		return at, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("year, month, day, hour, minute and second must all be given or all be left out")
	}
}

func (t *Tool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var req Request
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if req.To == "" {
		return "a recipient address is required", nil
	}

	at, scheduled, err := req.When(t.loc)
	if err != nil {
		return "invalid send time: " + err.Error(), nil
	}

	if !scheduled {
		if err := t.sender.Send(ctx, req.To, req.Subject, req.Content); err != nil {
			t.logger.Warn("send failed", zap.String("to", req.To), zap.Error(err))
			return "email could not be sent: " + err.Error(), nil
		}
		return "email sent at " + t.now().In(t.loc).Format(clock.Layout), nil
	}

	if t.scheduler == nil {
		return "scheduled sending is not available", nil
	}
	info, err := t.scheduler.Register(scheduler.Job{
		Name:    ToolName,
		Trigger: scheduler.At(at),
		Args:    []any{req.To, req.Subject, req.Content},
		Action:  t.deliver,
	})
	if err != nil {
		return "could not schedule email: " + err.Error(), nil
	}
	t.logger.Info("email scheduled", zap.String("job", info.ID), zap.Time("at", at))
	return "email scheduled for " + at.Format(clock.Layout), nil
}

// deliver is the scheduled job action; args are recipient, subject and body.
func (t *Tool) deliver(ctx context.Context, args []any) error {
	if len(args) != 3 {
		return fmt.Errorf("expected 3 arguments, got %d", len(args))
	}
	to, _ := args[0].(string)
	subject, _ := args[1].(string)
	body, _ := args[2].(string)
	return t.sender.Send(ctx, to, subject, body)
}
