package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestHub_DeliverChangeRespectsSubscriptions(t *testing.T) {
	hub := NewHub()
	all, err := hub.Register(1, nil)
	require.NoError(t, err)
	mine, err := hub.Register(2, nil)
	require.NoError(t, err)
	none, err := hub.Register(3, nil)
	require.NoError(t, err)

	require.True(t, all.Subscribe("music", Filter{}))
	require.True(t, mine.Subscribe("music", Filter{UserID: 2}))
	require.True(t, none.Subscribe("videos", Filter{}))

	hub.DeliverChange(ChangeEvent{Type: EventMediaCreated, Table: "music", Action: ActionInsert, RecordID: 10, UserID: 7})
	hub.DeliverChange(ChangeEvent{Type: EventMediaCreated, Table: "music", Action: ActionInsert, RecordID: 11, UserID: 2})

	assert.Len(t, drain(all), 2)
	got := drain(mine)
	require.Len(t, got, 1)
	var ev ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(got[0]), &ev))
	assert.Equal(t, uint(11), ev.RecordID)
	assert.Equal(t, ActionInsert, ev.Action)
	assert.Empty(t, drain(none))
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)
	c.HandleMessage([]byte(`{"type":"subscribe","table":"images","filter":{"user_id":5}}`))
	assert.Contains(t, drain(c)[0], `"subscribed"`)

	hub.DeliverChange(ChangeEvent{Table: "images", UserID: 5})
	assert.Len(t, drain(c), 1)

	c.HandleMessage([]byte(`{"type":"unsubscribe","table":"images"}`))
	drain(c)
	hub.DeliverChange(ChangeEvent{Table: "images", UserID: 5})
	assert.Empty(t, drain(c))
}

func TestClient_RejectsDisallowedTables(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)
	c.AllowTable = func(table string) bool { return table == "images" }

	c.HandleMessage([]byte(`{"type":"subscribe","table":"profiles"}`))
	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], `"error"`)

	c.HandleMessage([]byte(`not json`))
	assert.Contains(t, drain(c)[0], "invalid message")
}

func TestHub_ConnectionLimitsAndUnregister(t *testing.T) {
	hub := NewHub()
	var clients []*Client
	for i := 0; i < maxConnsPerUser; i++ {
		c, err := hub.Register(9, nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register(9, nil)
	assert.ErrorIs(t, err, ErrUserFull)

	hub.UnregisterClient(clients[0])
	hub.UnregisterClient(clients[0])
	assert.Equal(t, maxConnsPerUser-1, hub.ConnectionCount())

	_, ok := <-clients[0].Send
	assert.False(t, ok, "send channel closed on unregister")

	require.NoError(t, hub.Shutdown(context.Background()))
	_, err = hub.Register(9, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_ShutdownHandsCloseFrameToWritePump(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(2, nil)
	require.NoError(t, err)
	a.TrySend([]byte(`{"type":"change"}`))

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.ConnectionCount())

	// Queued messages still drain before the closed channel is observed.
	assert.Equal(t, []string{`{"type":"change"}`}, drain(a))
	_, ok := <-a.Send
	assert.False(t, ok)

	want := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
	for _, c := range []*Client{a, b} {
		assert.Equal(t, want, c.closeFrame)
	}

	// A late unregister from ReadPump neither panics nor changes the close frame.
	hub.UnregisterClient(a)
	assert.Equal(t, want, a.closeFrame)
}

func TestHub_DispatchRoutesByChannel(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(4, nil)
	require.NoError(t, err)
	c.Subscribe("videos", Filter{})

	hub.Dispatch(UserChannel(4), `{"type":"generation_progress"}`)
	hub.Dispatch(UserChannel(5), `{"type":"other"}`)
	hub.Dispatch(TableChannel("videos"), `{"type":"media_deleted","table":"videos","action":"delete","record_id":3}`)
	hub.Dispatch(TableChannel("videos"), `{broken`)
	hub.Dispatch("unknown", "x")

	assert.Equal(t, []string{
		`{"type":"generation_progress"}`,
		`{"type":"media_deleted","table":"videos","action":"delete","record_id":3,"user_id":0}`,
	}, drain(c))
}

func TestNotifier_RoundTripThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)
	c.Subscribe("images", Filter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishChange(ctx, ChangeEvent{Type: EventMediaCreated, Table: "images", Action: ActionInsert, RecordID: 1, UserID: 1}))
	require.NoError(t, n.PublishUser(ctx, 1, `{"type":"generation_completed"}`))

	var got []string
	require.Eventually(t, func() bool {
		got = append(got, drain(c)...)
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, got[0]+got[1], `"record_id":1`)
	assert.Contains(t, got[0]+got[1], "generation_completed")
}

func TestNotifier_NilClientIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishChange(context.Background(), ChangeEvent{Table: "x"}))
	assert.NoError(t, n.PublishUser(context.Background(), 1, "x"))
	assert.NoError(t, n.StartSubscriber(context.Background(), func(string, string) {}))
}
