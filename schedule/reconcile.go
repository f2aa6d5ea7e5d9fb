package schedule

import (
	"time"

	"go.uber.org/zap"
)

// Reconciler merges a declared job list into a runtime job list.
//
// The merge is a pure function of its inputs plus the injected clock and ID
// generator, so it is fully unit-testable. Declared fields win for matched
// jobs; runtime identity and bookkeeping always survive. Jobs absent from the
// declared source are never disabled or deleted.
type Reconciler struct {
	// DefaultAgentID owns declared-only jobs that carry no agentId
	DefaultAgentID string

	// Clock and NewID are injectable for tests. Nil means time.Now / NewJobID.
	Clock func() time.Time
	NewID func() string

	Logger *zap.SugaredLogger
}

// Summary describes what a reconciliation pass did
type Summary struct {
	Matched     int // runtime jobs updated from a declared counterpart
	Created     int // declared-only entries turned into new runtime jobs
	RuntimeOnly int // runtime jobs with no declared counterpart, passed through
	Duplicates  int // declared entries shadowed by a later entry with the same name
}

func (r *Reconciler) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Reconciler) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return NewJobID()
}

func (r *Reconciler) log() *zap.SugaredLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop().Sugar()
}

// Reconcile produces the authoritative runtime job list from declared and
// runtime state.
//
// Matched jobs (joined by exact name) keep id, createdAtMs and state from the
// runtime side and take schedule, sessionTarget, wakeMode and payload from the
// declared side; agentId, enabled and delivery are taken from the declared
// side only when present there. updatedAtMs is set to the current time.
// Runtime jobs without a declared counterpart pass through unchanged.
// Declared entries without a runtime counterpart become brand-new jobs.
//
// Output length is always len(runtime) + unmatched declared entries.
func (r *Reconciler) Reconcile(declared []DeclaredJob, runtime []ScheduledJob) ([]ScheduledJob, Summary) {
	var summary Summary
	nowMs := r.now().UnixMilli()

	// Index declared by name. Last one wins on duplicate names; the declared
	// source does not enforce uniqueness, so surface the collision loudly
	// instead of guessing.
	byName := make(map[string]DeclaredJob, len(declared))
	for _, d := range declared {
		if _, dup := byName[d.Name]; dup {
			summary.Duplicates++
			r.log().Warnw("Duplicate name in declared job list, last entry wins",
				"name", d.Name)
		}
		byName[d.Name] = d
	}

	out := make([]ScheduledJob, 0, len(runtime)+len(byName))
	consumed := make(map[string]bool, len(byName))

	for _, job := range runtime {
		d, ok := byName[job.Name]
		if !ok {
			// No declared counterpart: runtime-only jobs are kept verbatim.
			// Whether such a job should eventually be disabled is deliberately
			// not decided here; absence from the declared set is not deletion.
			out = append(out, job)
			summary.RuntimeOnly++
			continue
		}
		out = append(out, mergeJob(job, d, nowMs))
		consumed[job.Name] = true
		summary.Matched++
	}

	// Declared entries with no runtime counterpart become new jobs.
	// Iterate the original slice to keep output order deterministic.
	seen := make(map[string]bool, len(byName))
	for _, d := range declared {
		if consumed[d.Name] || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, r.createJob(byName[d.Name], nowMs))
		summary.Created++
	}

	return out, summary
}

// mergeJob applies declared fields over a matched runtime job.
// Identity (id, createdAtMs) and the opaque state bag come from runtime.
func mergeJob(job ScheduledJob, d DeclaredJob, nowMs int64) ScheduledJob {
	merged := ScheduledJob{
		ID:            job.ID,
		AgentID:       job.AgentID,
		Name:          job.Name,
		Enabled:       job.Enabled,
		CreatedAtMs:   job.CreatedAtMs,
		UpdatedAtMs:   nowMs,
		Schedule:      d.Schedule,
		SessionTarget: d.SessionTarget,
		WakeMode:      d.WakeMode,
		Payload:       d.Payload,
		Delivery:      job.Delivery,
		State:         job.State,
	}
	if d.AgentID != nil {
		merged.AgentID = *d.AgentID
	}
	if d.Enabled != nil {
		merged.Enabled = *d.Enabled
	}
	if d.Delivery != nil {
		merged.Delivery = d.Delivery
	}
	return merged
}

// createJob seeds a brand-new runtime job from a declared-only entry
func (r *Reconciler) createJob(d DeclaredJob, nowMs int64) ScheduledJob {
	job := ScheduledJob{
		ID:            r.newID(),
		AgentID:       r.DefaultAgentID,
		Name:          d.Name,
		Enabled:       true,
		CreatedAtMs:   nowMs,
		UpdatedAtMs:   nowMs,
		Schedule:      d.Schedule,
		SessionTarget: d.SessionTarget,
		WakeMode:      d.WakeMode,
		Payload:       d.Payload,
		Delivery:      d.Delivery,
	}
	if d.AgentID != nil {
		job.AgentID = *d.AgentID
	}
	if d.Enabled != nil {
		job.Enabled = *d.Enabled
	}
	return job
}
