package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storylinez/storylinez-go/internal/model"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestBroadcastProgress_ReachesRunSubscribersOnly(t *testing.T) {
	hub, _ := startHub(t)
	watcher := &Client{RunID: "run-1", Send: make(chan []byte, 4)}
	other := &Client{RunID: "run-2", Send: make(chan []byte, 4)}
	require.True(t, hub.Register(watcher))
	require.True(t, hub.Register(other))

	hub.BroadcastProgress("run-1", pipeline.Event{
		Stage:  pipeline.StageRender,
		Kind:   pipeline.EventPending,
		Result: &pipeline.Result{State: pipeline.StatePending, RenderID: "r-1"},
		Err:    errors.New("still rendering"),
	})

	var msg model.WSProgressMessage
	require.NoError(t, json.Unmarshal(receive(t, watcher), &msg))
	assert.Equal(t, model.WSMessageTypeProgress, msg.Type)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, pipeline.StageRender, msg.Stage)
	assert.Equal(t, pipeline.EventPending, msg.Event)
	assert.Equal(t, "r-1", msg.Result.RenderID)
	assert.Equal(t, "still rendering", msg.Error)

	assert.Empty(t, other.Send)
}

func TestBroadcastRun_MessageTypeFollowsStatus(t *testing.T) {
	hub, _ := startHub(t)
	c := &Client{RunID: "run-1", Send: make(chan []byte, 4)}
	require.True(t, hub.Register(c))

	hub.BroadcastRun(&model.Run{ID: "run-1", Status: model.RunStatusRetrying})
	var status model.WSStatusMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &status))
	assert.Equal(t, model.WSMessageTypeStatus, status.Type)
	assert.Equal(t, model.RunStatusRetrying, status.Status)

	hub.BroadcastRun(&model.Run{ID: "run-1", Status: model.RunStatusSucceeded})
	var done model.WSCompleteMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &done))
	assert.Equal(t, model.WSMessageTypeComplete, done.Type)
	assert.Equal(t, model.RunStatusSucceeded, done.Result.Status)

	reason := "storyboard: bad key"
	hub.BroadcastRun(&model.Run{ID: "run-1", Status: model.RunStatusFailed, Error: &reason})
	var failed model.WSErrorMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &failed))
	assert.Equal(t, model.WSMessageTypeError, failed.Type)
	assert.Equal(t, CodeRunFailed, failed.Error.Code)
	assert.Equal(t, reason, failed.Error.Message)

	hub.BroadcastRun(&model.Run{ID: "run-1", Status: model.RunStatusCanceled})
	var canceled model.WSErrorMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &canceled))
	assert.Equal(t, CodeRunCanceled, canceled.Error.Code)
	assert.Equal(t, "canceled", canceled.Error.Message)
}

func TestUnregister_ClosesSend(t *testing.T) {
	hub, _ := startHub(t)
	c := &Client{RunID: "run-1", Send: make(chan []byte, 1)}
	require.True(t, hub.Register(c))
	assert.Equal(t, 1, hub.Subscribers("run-1"))

	hub.Unregister(c)
	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("run-1"))
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)
	c := &Client{RunID: "run-1", Send: make(chan []byte)}
	require.True(t, hub.Register(c))

	hub.BroadcastRun(&model.Run{ID: "run-1", Status: model.RunStatusRunning})

	require.Eventually(t, func() bool { return hub.Subscribers("run-1") == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-c.Send
	assert.False(t, ok)
}

func TestStoppedHubRefusesClients(t *testing.T) {
	hub, cancel := startHub(t)
	c := &Client{RunID: "run-1", Send: make(chan []byte, 1)}
	require.True(t, hub.Register(c))

	cancel()
	_, ok := <-c.Send
	assert.False(t, ok)

	assert.False(t, hub.Register(&Client{RunID: "run-1", Send: make(chan []byte, 1)}))
	hub.Unregister(c)
}
