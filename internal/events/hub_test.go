package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesOnlyAddressSubscribers(t *testing.T) {
	h := NewHub(nil, nil, zerolog.Nop())

	ana, unsubAna := h.Subscribe("ana")
	defer unsubAna()
	bo, unsubBo := h.Subscribe("bo")
	defer unsubBo()

	h.Publish("ana", Event{Type: FriendRequestReceived, Data: map[string]string{"from": "bo"}})

	select {
	case data := <-ana:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, FriendRequestReceived, ev.Type)
		assert.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event for ana")
	}

	select {
	case <-bo:
		t.Fatal("bo should not receive ana's event")
	default:
	}

	h.Broadcast(Event{Type: ProfileRegistered})
	assert.Len(t, ana, 1)
	assert.Len(t, bo, 1)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub(nil, nil, zerolog.Nop())
	ch, unsubscribe := h.Subscribe("ana")

	for i := 0; i < subscriberBuffer*2; i++ {
		h.Publish("ana", Event{Type: FriendRequestReceived})
	}
	assert.Len(t, ch, subscriberBuffer)

	assert.Equal(t, 1, h.Subscribers("ana"))
	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, h.Subscribers("ana"))
}

func TestServeWSStreamsEvents(t *testing.T) {
	h := NewHub([]string{"http://localhost:3000"}, nil, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, "ana")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://localhost:3000"}})
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Subscribers("ana") == 1 }, time.Second, 5*time.Millisecond)
	h.Publish("ana", Event{Type: FriendRequestAccepted, Data: map[string]string{"requestId": "r1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, FriendRequestAccepted, ev.Type)

	conn.Close()
	require.Eventually(t, func() bool { return h.Subscribers("ana") == 0 }, 2*time.Second, 5*time.Millisecond)
}
