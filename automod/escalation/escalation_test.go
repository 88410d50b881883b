package escalation

import (
	"context"
	"testing"

	"github.com/modbot-dev/modbot/automod/actionlog"
	"github.com/modbot-dev/modbot/automod/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEscalation(t *testing.T) *policy.EscalationPolicy {
	esc, err := policy.ParseEscalation(policy.RawEscalation{
		WindowMinutes: 60,
		Thresholds: map[string]policy.ThresholdExpr{
			"warnings": {"3 -> timeout_member(30)", "5 -> escalate(repeat)"},
			"timeouts": {"2 -> escalate(human_mods)"},
		},
	})
	require.NoError(t, err)
	return esc
}

func TestBaseRoot(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("timeout_member", BaseRoot("Timeout_Member(30)"))
	assert.Equal("warn_user", BaseRoot(" warn_user "))
	assert.Equal("escalate", BaseRoot("escalate(human_mods)"))
	assert.Equal("", BaseRoot(""))
}

func TestEvaluateExactCount(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	esc := testEscalation(t)
	store := actionlog.NewMemStore()

	fired := [][]string{}
	for i := 0; i < 6; i++ {
		_, err := store.LogAction(ctx, actionlog.Entry{Action: "warn_user", TargetID: "u1"})
		require.NoError(t, err)
		out, err := Evaluate(ctx, store, esc, "u1", "warn_user", 60)
		require.NoError(t, err)
		fired = append(fired, out)
	}
	assert.Empty(fired[0])
	assert.Empty(fired[1])
	assert.Equal([]string{"timeout_member(30)"}, fired[2])
	// fourth warning does not re-fire the third-warning threshold
	assert.Empty(fired[3])
	assert.Equal([]string{"escalate(repeat)"}, fired[4])
	assert.Empty(fired[5])
}

func TestEvaluateTimeoutPrefix(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	esc := testEscalation(t)
	store := actionlog.NewMemStore()

	_, err := store.LogAction(ctx, actionlog.Entry{Action: "timeout_member(30)", TargetID: "u1"})
	require.NoError(t, err)
	out, err := Evaluate(ctx, store, esc, "u1", "timeout_member(30)", 60)
	assert.NoError(err)
	assert.Empty(out)

	_, err = store.LogAction(ctx, actionlog.Entry{Action: "timeout_member(10)", TargetID: "u1"})
	require.NoError(t, err)
	out, err = Evaluate(ctx, store, esc, "u1", "timeout_member(10)", 60)
	assert.NoError(err)
	assert.Equal([]string{"escalate(human_mods)"}, out)
}

func TestEvaluateIgnoresFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	esc := testEscalation(t)
	store := actionlog.NewMemStore()
	for i := 0; i < 2; i++ {
		_, err := store.LogAction(ctx, actionlog.Entry{Action: "warn_user", TargetID: "u1"})
		require.NoError(t, err)
	}
	_, err := store.LogAction(ctx, actionlog.Entry{Action: "warn_user", TargetID: "u1", Status: actionlog.StatusFailure})
	require.NoError(t, err)

	out, err := Evaluate(ctx, store, esc, "u1", "warn_user", 60)
	assert.NoError(err)
	assert.Empty(out)
}

func TestEvaluateIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	esc := testEscalation(t)
	store := actionlog.NewMemStore()
	for i := 0; i < 3; i++ {
		_, err := store.LogAction(ctx, actionlog.Entry{Action: "warn_user", TargetID: "u1"})
		require.NoError(t, err)
	}
	first, err := Evaluate(ctx, store, esc, "u1", "warn_user", 60)
	assert.NoError(err)
	second, err := Evaluate(ctx, store, esc, "u1", "warn_user", 60)
	assert.NoError(err)
	assert.Equal(first, second)
	assert.Equal([]string{"timeout_member(30)"}, first)
}

func TestEvaluateNoThresholds(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	esc := testEscalation(t)
	store := actionlog.NewMemStore()
	out, err := Evaluate(ctx, store, esc, "u1", "delete_message", 60)
	assert.NoError(err)
	assert.Empty(out)

	out, err = Evaluate(ctx, store, nil, "u1", "warn_user", 60)
	assert.NoError(err)
	assert.Empty(out)
}
