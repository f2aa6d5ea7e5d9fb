// Package schedule holds the scheduled-job data model and the reconciliation
// engine that merges the declared (VCS-managed) job list into the persisted
// runtime job list before the gateway starts.
package schedule

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/teranos/warden/errors"
)

// Schedule kinds
const (
	ScheduleKindCron     = "cron"
	ScheduleKindInterval = "interval"
)

// Session targets for job execution
const (
	SessionTargetMain     = "main"
	SessionTargetIsolated = "isolated"
)

// Wake modes controlling when a due job wakes the gateway
const (
	WakeModeNow           = "now"
	WakeModeNextHeartbeat = "next-heartbeat"
)

// cronParser accepts standard five-field cron expressions plus descriptors
// like @hourly, matching what operators write in the declared file.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule is a discriminated union: a cron expression or a fixed interval.
type Schedule struct {
	Kind       string `json:"kind"`
	Expr       string `json:"expr,omitempty"`       // kind == "cron"
	IntervalMs int64  `json:"intervalMs,omitempty"` // kind == "interval"
}

// Validate checks that the schedule is well-formed for its kind
func (s Schedule) Validate() error {
	switch s.Kind {
	case ScheduleKindCron:
		if strings.TrimSpace(s.Expr) == "" {
			return errors.New("cron schedule requires expr")
		}
		if _, err := cronParser.Parse(s.Expr); err != nil {
			return errors.Wrapf(err, "invalid cron expression %q", s.Expr)
		}
	case ScheduleKindInterval:
		if s.IntervalMs <= 0 {
			return errors.Newf("interval schedule requires positive intervalMs, got %d", s.IntervalMs)
		}
	default:
		return errors.Newf("unknown schedule kind %q", s.Kind)
	}
	return nil
}

// ScheduledJob is the runtime entity persisted in the job store.
//
// Identity fields (ID, CreatedAtMs) and the State bag are owned by the runtime
// side: they are never produced by the declared source and survive
// reconciliation untouched. The gateway itself writes execution bookkeeping
// into State; Warden treats it as opaque.
type ScheduledJob struct {
	ID            string          `json:"id"`
	AgentID       string          `json:"agentId"`
	Name          string          `json:"name"`
	Enabled       bool            `json:"enabled"`
	CreatedAtMs   int64           `json:"createdAtMs"`
	UpdatedAtMs   int64           `json:"updatedAtMs"`
	Schedule      Schedule        `json:"schedule"`
	SessionTarget string          `json:"sessionTarget"`
	WakeMode      string          `json:"wakeMode"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Delivery      json.RawMessage `json:"delivery,omitempty"`
	State         json.RawMessage `json:"state,omitempty"`
}

// DeclaredJob is the desired-state entity checked into version control.
// It joins to a ScheduledJob by exact Name match and carries no identity
// or bookkeeping fields.
type DeclaredJob struct {
	Name          string          `json:"name"`
	AgentID       *string         `json:"agentId,omitempty"`
	Enabled       *bool           `json:"enabled,omitempty"`
	Schedule      Schedule        `json:"schedule"`
	SessionTarget string          `json:"sessionTarget"`
	WakeMode      string          `json:"wakeMode"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Delivery      json.RawMessage `json:"delivery,omitempty"`
}

// Validate checks the declared entry for the defects operators actually make:
// missing name, malformed schedule.
func (d DeclaredJob) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("declared job missing name")
	}
	if err := d.Schedule.Validate(); err != nil {
		return errors.Wrapf(err, "declared job %q", d.Name)
	}
	return nil
}

// NewJobID generates a fresh scheduled-job ID with the SJB_ prefix
func NewJobID() string {
	return "SJB_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
