package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/api/internal/app"
	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
	"github.com/dealroom/api/pkg/logger"
)

func startHub(t *testing.T, origins []string, opts ...HubOption) (*Hub, string) {
	t.Helper()
	hub := NewHub(logger.NewNop(), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, origins, logger.NewNop()).ServeWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func errorCode(t *testing.T, msg Message) string {
	t.Helper()
	require.Equal(t, MessageTypeError, msg.Type)
	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	return data.Code
}

func TestHub_DeliversChangesToSubscribers(t *testing.T) {
	hub, url := startHub(t, []string{"*"})
	dealID := shared.NewID().String()
	participantID := shared.NewID().String()

	dealConn := dial(t, url)
	send(t, dealConn, Message{Type: MessageTypeSubscribe, Channel: MakeChannel(ChannelTypeDeal, dealID), RequestID: "r1"})
	ack := receive(t, dealConn)
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.Equal(t, "r1", ack.RequestID)

	// subscribe through the data payload
	participantConn := dial(t, url)
	data, err := json.Marshal(ChannelRequest{Channel: MakeChannel(ChannelTypeParticipant, participantID), RequestID: "r2"})
	require.NoError(t, err)
	send(t, participantConn, Message{Type: MessageTypeSubscribe, Data: data})
	ack = receive(t, participantConn)
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.Equal(t, "r2", ack.RequestID)

	otherConn := dial(t, url)
	send(t, otherConn, Message{Type: MessageTypeSubscribe, Channel: MakeChannel(ChannelTypeDeal, shared.NewID().String())})
	receive(t, otherConn)

	hub.PermissionsChanged(app.PermissionChange{
		Action:        audit.ActionToggled,
		ParticipantID: participantID,
		DealID:        dealID,
		RoleType:      permission.PresetInvestor,
		Version:       3,
		Changes:       permission.Changes{Granted: []permission.Key{permission.ExportData}},
	})

	for _, conn := range []*websocket.Conn{dealConn, participantConn} {
		msg := receive(t, conn)
		require.Equal(t, MessageTypeEvent, msg.Type)

		var change app.PermissionChange
		require.NoError(t, json.Unmarshal(msg.Data, &change))
		assert.Equal(t, participantID, change.ParticipantID)
		assert.Equal(t, audit.ActionToggled, change.Action)
		assert.Equal(t, 3, change.Version)
		assert.Equal(t, []permission.Key{permission.ExportData}, change.Changes.Granted)
	}

	// a deal the client does not follow delivers nothing
	send(t, otherConn, Message{Type: MessageTypePing, RequestID: "p1"})
	pong := receive(t, otherConn)
	assert.Equal(t, MessageTypePong, pong.Type)
	assert.Equal(t, "p1", pong.RequestID)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub, url := startHub(t, []string{"*"})
	channel := MakeChannel(ChannelTypeDeal, shared.NewID().String())

	conn := dial(t, url)
	send(t, conn, Message{Type: MessageTypeSubscribe, Channel: channel})
	receive(t, conn)
	assert.Equal(t, 1, hub.Subscribers(channel))

	send(t, conn, Message{Type: MessageTypeUnsubscribe, Channel: channel})
	ack := receive(t, conn)
	assert.Equal(t, MessageTypeUnsubscribed, ack.Type)
	assert.Equal(t, 0, hub.Subscribers(channel))
}

func TestHub_RejectsBadMessages(t *testing.T) {
	_, url := startHub(t, []string{"*"}, WithMaxSubscriptions(1))
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, CodeInvalidMessage, errorCode(t, receive(t, conn)))

	send(t, conn, Message{Type: "shout"})
	assert.Equal(t, CodeUnknownMessageType, errorCode(t, receive(t, conn)))

	for _, channel := range []string{"", "deal:not-a-uuid", "tenant:" + shared.NewID().String()} {
		send(t, conn, Message{Type: MessageTypeSubscribe, Channel: channel})
		assert.Equal(t, CodeInvalidChannel, errorCode(t, receive(t, conn)), channel)
	}

	first := MakeChannel(ChannelTypeDeal, shared.NewID().String())
	send(t, conn, Message{Type: MessageTypeSubscribe, Channel: first})
	assert.Equal(t, MessageTypeSubscribed, receive(t, conn).Type)

	// resubscribing to a followed channel is not a new subscription
	send(t, conn, Message{Type: MessageTypeSubscribe, Channel: first})
	assert.Equal(t, MessageTypeSubscribed, receive(t, conn).Type)

	send(t, conn, Message{Type: MessageTypeSubscribe, Channel: MakeChannel(ChannelTypeDeal, shared.NewID().String())})
	assert.Equal(t, CodeSubscriptionLimit, errorCode(t, receive(t, conn)))
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, url := startHub(t, []string{"*"})

	conn := dial(t, url)
	send(t, conn, Message{Type: MessageTypePing})
	receive(t, conn)
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_CheckOrigin(t *testing.T) {
	_, url := startHub(t, []string{"https://deals.example"})

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	header.Set("Origin", "https://deals.example")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}

func TestHub_BroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(logger.NewNop())
	channel := MakeChannel(ChannelTypeDeal, shared.NewID().String())

	for range broadcastBufferSize {
		require.True(t, hub.Broadcast(channel, NewMessage(MessageTypeEvent)))
	}
	assert.False(t, hub.Broadcast(channel, NewMessage(MessageTypeEvent)))
}

func TestChannels(t *testing.T) {
	id := shared.NewID().String()

	kind, got := ParseChannel(MakeChannel(ChannelTypeParticipant, id))
	assert.Equal(t, ChannelTypeParticipant, kind)
	assert.Equal(t, id, got)

	kind, got = ParseChannel("no-separator")
	assert.Empty(t, kind)
	assert.Equal(t, "no-separator", got)

	assert.True(t, ValidChannel("deal:"+id))
	assert.True(t, ValidChannel("participant:"+id))
	assert.False(t, ValidChannel("deal:"))
	assert.False(t, ValidChannel("deal:00000000-0000-0000-0000-000000000000"))
	assert.False(t, ValidChannel("scan:"+id))
}
