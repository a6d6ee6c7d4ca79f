package domain

import "time"

// Invocation modes.
const (
	ModeAdminBroadcast = "admin_broadcast"
	ModeBatch          = "batch"
)

// DispatchStats holds the counters of one invocation.
type DispatchStats struct {
	Recipients    int `json:"recipients" dynamodbav:"recipients"`
	WithTokens    int `json:"with_tokens" dynamodbav:"with_tokens"`
	WithoutTokens int `json:"without_tokens" dynamodbav:"without_tokens"`
	Sent          int `json:"sent" dynamodbav:"sent"`
	Failed        int `json:"failed" dynamodbav:"failed"`
	Stored        int `json:"stored" dynamodbav:"stored"`
	Deactivated   int `json:"deactivated" dynamodbav:"deactivated"`
	Errors        int `json:"errors" dynamodbav:"errors"`
}

// DispatchReport summarises a finished invocation. It is written as a metric
// row, archived, and used for alerting.
type DispatchReport struct {
	RunID      string        `json:"run_id" dynamodbav:"run_id"`
	Mode       string        `json:"mode" dynamodbav:"mode"`
	SenderID   string        `json:"sender_id,omitempty" dynamodbav:"sender_id,omitempty"`
	Stats      DispatchStats `json:"stats" dynamodbav:"stats"`
	Errors     []string      `json:"errors,omitempty" dynamodbav:"errors,omitempty"`
	StartedAt  time.Time     `json:"started_at" dynamodbav:"started_at"`
	DurationMs int64         `json:"duration_ms" dynamodbav:"duration_ms"`
	ExpiresAt  int64         `json:"-" dynamodbav:"expires_at,omitempty"`
}

// Degraded reports whether any message or write failed during the run.
func (r *DispatchReport) Degraded() bool {
	return r.Stats.Failed > 0 || r.Stats.Errors > 0
}
