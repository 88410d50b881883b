package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/modbot-dev/modbot/automod/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPolicy(t *testing.T, eng *Engine, doc string) {
	pol, err := policy.ParseYAML([]byte(doc))
	require.NoError(t, err)
	eng.Policy = pol
}

func TestFollowUpDepthBound(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, platform, store := EngineTestFixture(0.95)
	withPolicy(t, eng, `
rules:
  - name: toxic
    if: "toxicity >= 0.8"
    actions: [warn_user]
escalation:
  window_minutes: 60
  thresholds:
    warnings: "1 -> timeout_member(30)"
    timeouts: "1 -> escalate(human_mods)"
`)

	v, err := eng.ProcessMessage(ctx, TestMessage("m1", "awful"))
	require.NoError(err)
	require.Len(v.Results, 1)
	assert.True(v.Results[0].Success)

	// the timeout from the first pass runs, the escalation it triggers does not
	require.Len(v.FollowUps, 1)
	assert.Equal("timeout_member(30)", v.FollowUps[0].Action)
	assert.True(v.FollowUps[0].Success)
	assert.Equal([]string{"escalate(human_mods)"}, v.Dropped)

	assert.Len(platform.Timeouts, 1)
	assert.Empty(platform.ChannelPosts)
	assert.Equal([]string{"warn_user", "timeout_member(30)"}, actionNames(store.Records()))
}

func TestFollowUpsDeduplicated(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, platform, _ := EngineTestFixture(0.95)
	withPolicy(t, eng, `
rules:
  - name: toxic
    if: "toxicity >= 0.8"
    actions: [warn_user, timeout_member(10)]
escalation:
  window_minutes: 60
  thresholds:
    warnings: "1 -> escalate(human_mods)"
    timeouts: "1 -> escalate(human_mods)"
`)

	v, err := eng.ProcessMessage(ctx, TestMessage("m1", "awful"))
	require.NoError(err)
	require.Len(v.Results, 2)
	require.Len(v.FollowUps, 1)
	assert.Equal("escalate(human_mods)", v.FollowUps[0].Action)
	assert.True(v.FollowUps[0].Success)
	assert.Empty(v.Dropped)

	require.Len(platform.ChannelPosts, 1)
	assert.True(strings.HasPrefix(platform.ChannelPosts[0].Text, "<@&role-mods> [ESCALATION:human_mods]"))
}

func TestTimeoutDurationClamped(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	assert.Equal(MaxTimeoutMinutes, TimeoutMinutes("timeout_member(1000000000)"))
	assert.Equal(MaxTimeoutMinutes, TimeoutMinutes("timeout_member(40320)"))
	assert.Equal(DefaultTimeoutMinutes, TimeoutMinutes("timeout_member(99999999999999999999)"))

	eng, platform, _ := EngineTestFixture(0.95)
	res := eng.runner().Run(ctx, TestMessage("m1", "awful"), []string{"timeout_member(1000000000)"}, 0.95, nil)
	require.Len(res, 1)
	assert.True(res[0].Success)
	require.Len(platform.Timeouts, 1)
	until := platform.Timeouts[0].Until
	assert.True(until.After(time.Now()))
	assert.WithinDuration(time.Now().Add(28*24*time.Hour), until, time.Minute)
}
