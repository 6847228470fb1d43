package clock

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ToolName = "get_now"
	Layout   = "2006-01-02 15:04:05"
)

// Tool reports the current local time. The scheduled mail flow relies on it
// so the model never invents timestamps.
type Tool struct {
	now func() time.Time
}

func New(now func() time.Time) *Tool {
	if now == nil {
		now = time.Now
	}
	return &Tool{now: now}
}

func (t *Tool) Name() string { return ToolName }

func (t *Tool) Description() string {
	return "Returns the current local time as YYYY-MM-DD HH:MM:SS."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *Tool) Invoke(context.Context, json.RawMessage) (string, error) {
	return t.now().Format(Layout), nil
}
