package schedule

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

// testReconciler returns a reconciler with a fixed clock and deterministic IDs
func testReconciler(nowMs int64) *Reconciler {
	n := 0
	return &Reconciler{
		DefaultAgentID: "main",
		Clock:          func() time.Time { return time.UnixMilli(nowMs) },
		NewID: func() string {
			n++
			return fmt.Sprintf("SJB_new%03d", n)
		},
	}
}

func intervalSchedule(ms int64) Schedule {
	return Schedule{Kind: ScheduleKindInterval, IntervalMs: ms}
}

func cronSchedule(expr string) Schedule {
	return Schedule{Kind: ScheduleKindCron, Expr: expr}
}

func TestReconcileMatchedJobKeepsIdentityTakesDeclaredFields(t *testing.T) {
	r := testReconciler(5000)

	runtime := []ScheduledJob{{
		ID:            "x1",
		AgentID:       "agent-a",
		Name:          "A",
		Enabled:       true,
		CreatedAtMs:   1000,
		UpdatedAtMs:   1000,
		Schedule:      intervalSchedule(60_000),
		SessionTarget: SessionTargetMain,
		WakeMode:      WakeModeNextHeartbeat,
		Payload:       json.RawMessage(`{"old":true}`),
		State:         json.RawMessage(`{"lastRunAtMs":1234}`),
	}}
	declared := []DeclaredJob{{
		Name:          "A",
		Schedule:      cronSchedule("0 * * * *"),
		SessionTarget: SessionTargetIsolated,
		WakeMode:      WakeModeNow,
		Payload:       json.RawMessage(`{"new":true}`),
	}}

	out, summary := r.Reconcile(declared, runtime)
	require.Len(t, out, 1)
	assert.Equal(t, 1, summary.Matched)

	job := out[0]
	// Identity and bookkeeping from runtime
	assert.Equal(t, "x1", job.ID)
	assert.Equal(t, int64(1000), job.CreatedAtMs)
	assert.JSONEq(t, `{"lastRunAtMs":1234}`, string(job.State))
	// Declarative fields from declared
	assert.Equal(t, WakeModeNow, job.WakeMode)
	assert.Equal(t, SessionTargetIsolated, job.SessionTarget)
	assert.Equal(t, cronSchedule("0 * * * *"), job.Schedule)
	assert.JSONEq(t, `{"new":true}`, string(job.Payload))
	// agentId not declared, runtime value survives
	assert.Equal(t, "agent-a", job.AgentID)
	assert.Equal(t, int64(5000), job.UpdatedAtMs)
}

func TestReconcileRuntimeOnlyJobsPassThroughUnchanged(t *testing.T) {
	r := testReconciler(5000)

	job := ScheduledJob{
		ID:            "x9",
		AgentID:       "agent-b",
		Name:          "user-created",
		Enabled:       true,
		CreatedAtMs:   42,
		UpdatedAtMs:   43,
		Schedule:      intervalSchedule(1000),
		SessionTarget: SessionTargetMain,
		WakeMode:      WakeModeNextHeartbeat,
		State:         json.RawMessage(`{"runs":7}`),
	}

	out, summary := r.Reconcile(nil, []ScheduledJob{job})
	require.Len(t, out, 1)
	assert.Equal(t, job, out[0])
	assert.Equal(t, 1, summary.RuntimeOnly)
}

func TestReconcileDeclaredOnlyCreatesNewJob(t *testing.T) {
	r := testReconciler(9000)

	declared := []DeclaredJob{{
		Name:          "fresh",
		Schedule:      intervalSchedule(30_000),
		SessionTarget: SessionTargetMain,
		WakeMode:      WakeModeNow,
		Payload:       json.RawMessage(`{"p":1}`),
	}}
	runtime := []ScheduledJob{{ID: "x1", Name: "other", Schedule: intervalSchedule(1)}}

	out, summary := r.Reconcile(declared, runtime)
	require.Len(t, out, 2)
	assert.Equal(t, 1, summary.Created)

	created := out[1]
	assert.Equal(t, "SJB_new001", created.ID)
	assert.NotEqual(t, "x1", created.ID)
	assert.True(t, created.Enabled, "enabled defaults to true when unspecified")
	assert.Equal(t, "main", created.AgentID, "agentId defaults to the baseline owner")
	assert.Equal(t, int64(9000), created.CreatedAtMs)
	assert.Equal(t, int64(9000), created.UpdatedAtMs)
	assert.Nil(t, created.State)
}

func TestReconcileDeclaredOptionalFieldsRespected(t *testing.T) {
	r := testReconciler(9000)

	declared := []DeclaredJob{{
		Name:          "configured",
		AgentID:       ptr("agent-z"),
		Enabled:       ptr(false),
		Schedule:      intervalSchedule(30_000),
		SessionTarget: SessionTargetMain,
		WakeMode:      WakeModeNow,
	}}

	out, _ := r.Reconcile(declared, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "agent-z", out[0].AgentID)
	assert.False(t, out[0].Enabled)
}

func TestReconcileWakeModeOverride(t *testing.T) {
	// Runtime has {name:"A", wakeMode:"next-heartbeat", id:"x1"}, declared has
	// {name:"A", wakeMode:"now"} → one job named A, id x1, wakeMode now.
	r := testReconciler(5000)

	runtime := []ScheduledJob{{
		ID:       "x1",
		Name:     "A",
		WakeMode: WakeModeNextHeartbeat,
		Schedule: intervalSchedule(1000),
	}}
	declared := []DeclaredJob{{
		Name:     "A",
		WakeMode: WakeModeNow,
		Schedule: intervalSchedule(1000),
	}}

	out, _ := r.Reconcile(declared, runtime)
	require.Len(t, out, 1)
	assert.Equal(t, "x1", out[0].ID)
	assert.Equal(t, WakeModeNow, out[0].WakeMode)
}

func TestReconcileIdempotentModuloUpdatedAt(t *testing.T) {
	r := testReconciler(5000)

	declared := []DeclaredJob{{
		Name:          "A",
		Schedule:      cronSchedule("@hourly"),
		SessionTarget: SessionTargetMain,
		WakeMode:      WakeModeNow,
		Payload:       json.RawMessage(`{"p":1}`),
	}}
	runtime := []ScheduledJob{{
		ID:          "x1",
		Name:        "A",
		CreatedAtMs: 100,
		Schedule:    intervalSchedule(1000),
		State:       json.RawMessage(`{}`),
	}}

	first, _ := r.Reconcile(declared, runtime)

	r2 := testReconciler(6000)
	second, _ := r2.Reconcile(declared, first)

	require.Len(t, second, len(first))
	for i := range first {
		a, b := first[i], second[i]
		b.UpdatedAtMs = a.UpdatedAtMs
		assert.Equal(t, a, b)
	}
}

func TestReconcileOutputLength(t *testing.T) {
	r := testReconciler(5000)

	declared := []DeclaredJob{
		{Name: "matched", Schedule: intervalSchedule(1000), WakeMode: WakeModeNow},
		{Name: "new-1", Schedule: intervalSchedule(1000), WakeMode: WakeModeNow},
		{Name: "new-2", Schedule: intervalSchedule(1000), WakeMode: WakeModeNow},
	}
	runtime := []ScheduledJob{
		{ID: "x1", Name: "matched", Schedule: intervalSchedule(1)},
		{ID: "x2", Name: "runtime-only", Schedule: intervalSchedule(1)},
	}

	out, summary := r.Reconcile(declared, runtime)
	assert.Len(t, out, len(runtime)+2)
	assert.Equal(t, Summary{Matched: 1, Created: 2, RuntimeOnly: 1}, summary)
}

func TestReconcileDuplicateDeclaredNamesLastWins(t *testing.T) {
	r := testReconciler(5000)

	declared := []DeclaredJob{
		{Name: "dup", WakeMode: WakeModeNextHeartbeat, Schedule: intervalSchedule(1000)},
		{Name: "dup", WakeMode: WakeModeNow, Schedule: intervalSchedule(2000)},
	}

	out, summary := r.Reconcile(declared, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, WakeModeNow, out[0].WakeMode)
	assert.Equal(t, int64(2000), out[0].Schedule.IntervalMs)
}

func TestReconcileFreshIDsAreUnique(t *testing.T) {
	r := &Reconciler{DefaultAgentID: "main", Clock: func() time.Time { return time.UnixMilli(1) }}

	declared := []DeclaredJob{
		{Name: "a", Schedule: intervalSchedule(1000), WakeMode: WakeModeNow},
		{Name: "b", Schedule: intervalSchedule(1000), WakeMode: WakeModeNow},
		{Name: "c", Schedule: intervalSchedule(1000), WakeMode: WakeModeNow},
	}
	runtime := []ScheduledJob{{ID: "SJB_existing", Name: "z", Schedule: intervalSchedule(1)}}

	out, _ := r.Reconcile(declared, runtime)
	ids := make(map[string]bool)
	for _, job := range out {
		assert.False(t, ids[job.ID], "duplicate id %s", job.ID)
		ids[job.ID] = true
	}
}
