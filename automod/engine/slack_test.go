package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modbot-dev/modbot/pkg/robusthttp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifyCall struct {
	MessageID string
	Label     string
	Reason    string
}

type fakeNotifier struct {
	calls []notifyCall
	err   error
}

func (n *fakeNotifier) SendEscalation(ctx context.Context, msg *Message, label, reason string) error {
	n.calls = append(n.calls, notifyCall{MessageID: msg.ID, Label: label, Reason: reason})
	return n.err
}

func TestEscalationNotifier(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, platform, _ := EngineTestFixture(0.95)
	n := &fakeNotifier{}
	eng.Notifier = n

	res := eng.runner().Run(ctx, TestMessage("m1", "awful"), []string{"escalate(spam)"}, 0.95, nil)
	require.Len(res, 1)
	assert.True(res[0].Success)
	require.Len(n.calls, 1)
	assert.Equal(notifyCall{MessageID: "m1", Label: "spam", Reason: "toxicity=0.95"}, n.calls[0])

	// notifier errors are logged only
	n.err = errors.New("slack down")
	res = eng.runner().Run(ctx, TestMessage("m2", "awful"), []string{"escalate(spam)"}, 0.95, nil)
	assert.True(res[0].Success)
	assert.Len(n.calls, 2)
	assert.Len(platform.ChannelPosts, 2)

	// nothing is copied out when the in-guild post fails
	platform.ChannelErr = errors.New("forbidden")
	res = eng.runner().Run(ctx, TestMessage("m3", "awful"), []string{"escalate(spam)"}, 0.95, nil)
	assert.Equal(ReasonEscalationSendFailed, res[0].FailureReason)
	assert.Len(n.calls, 2)
}

func TestSlackNotifierWebhook(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL)
	require.NoError(n.SendEscalation(context.Background(), TestMessage("m1", "you are the worst"), "human_mods", "toxicity=0.91"))

	text, ok := body["text"].(string)
	require.True(ok)
	assert.Contains(text, "Modbot Escalation: `human_mods`")
	assert.Contains(text, "guild `guild-1` (Test Guild) / channel `chan-general` / message `m1`")
	assert.Contains(text, "user `user-1` (somebody)")
	assert.Contains(text, "Reason: toxicity=0.91")
	assert.Contains(text, "> you are the worst")
}

func TestSlackNotifierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := &SlackNotifier{SlackWebhookURL: srv.URL, Client: robusthttp.NewClient()}
	assert.Error(t, n.SendEscalation(context.Background(), TestMessage("m1", "awful"), "human_mods", "r"))
}
