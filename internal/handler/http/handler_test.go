package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gorilla/websocket"
	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
	"github.com/gulon/chat-delivery-service/infra/pubsub"
	"github.com/gulon/chat-delivery-service/internal/adapter/membership"
	adapterpubsub "github.com/gulon/chat-delivery-service/internal/adapter/pubsub"
	"github.com/gulon/chat-delivery-service/internal/adapter/store"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	httphandler "github.com/gulon/chat-delivery-service/internal/handler/http"
	"github.com/gulon/chat-delivery-service/internal/handler/lp"
	"github.com/gulon/chat-delivery-service/internal/handler/stream"
	"github.com/gulon/chat-delivery-service/internal/handler/ws"
	"github.com/gulon/chat-delivery-service/internal/observability"
	"github.com/gulon/chat-delivery-service/internal/service"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv      *httptest.Server
	consumer *stream.Consumer
	repo     *store.MemoryRepository
}

func newTestEnv(t *testing.T, startConsumer bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		WS: config.WSConfig{
			AllowedOrigins:  []string{"*"},
			PingInterval:    time.Minute,
			PongWait:        time.Minute,
			WriteTimeout:    time.Second,
			MaxMessageBytes: 64 * 1024,
			PollTimeout:     300 * time.Millisecond,
		},
	}

	guard := membership.NewMemoryGuard()
	guard.SetMember("g1", "owner", "olivia", model.RoleOwner)
	guard.SetMember("g1", "admin", "adam", model.RoleAdmin)
	guard.SetMember("g1", "alice", "alice", model.RoleMember)
	guard.SetMember("g1", "bob", "bob", model.RoleMember)
	guard.SetMember("g2", "carol", "carol", model.RoleMember)
	guard.AddUser("mallory", "mallory")

	metrics := observability.NewMetrics()
	hub := registry.NewHub(registry.WithObserver(metrics))
	metrics.RegisterHub(hub)

	log := eventlog.NewMemoryLog()
	pub := pubsub.NewLogPublisher(log, nil)

	repo := store.NewMemoryRepository()
	messages := service.NewMessageService(repo, guard, hub, logger)
	gateway := service.NewGateway(messages, adapterpubsub.NewEventDispatcher(pub), false, logger)
	delivery := service.NewDeliveryService(hub, guard, 16, true, logger)

	consumer, err := stream.NewConsumer(
		config.ConsumerConfig{CloseTimeout: time.Second},
		stream.NewEventHandler(hub, logger, metrics),
		pubsub.NewLogSubscriber(log, nil),
		watermill.NopLogger{},
		logger,
	)
	require.NoError(t, err)

	router := httphandler.NewRouter(
		httphandler.NewHandler(messages, gateway, logger),
		ws.NewWSHandler(logger, cfg, delivery, gateway),
		lp.NewLPHandler(delivery, cfg, logger),
		httphandler.NewOpsHandler(consumer, hub),
		metrics,
		logger,
	)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
		_ = consumer.Stop()
		_ = log.Close()
	})

	if startConsumer {
		require.NoError(t, consumer.Start(context.Background()))
	}
	return &testEnv{srv: srv, consumer: consumer, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, data
}

func TestREST_MessageLifecycle(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	// Given a member sends a message
	status, body := env.do(t, http.MethodPost, "/api/messages", map[string]string{
		"groupPublicId": "g1", "senderPublicId": "alice", "content": "hello", "type": "TEXT",
	})
	req.Equal(http.StatusCreated, status, string(body))

	var created httphandler.MessageResponse
	req.NoError(json.Unmarshal(body, &created))
	req.Equal("hello", created.Content)
	req.True(created.CanEdit)
	id := created.PublicID.String()

	// Then a non-member cannot see it
	status, body = env.do(t, http.MethodGet, "/api/messages/"+id+"?requestUserPublicId=carol", nil)
	req.Equal(http.StatusNotFound, status)
	var errBody httphandler.ErrorResponse
	req.NoError(json.Unmarshal(body, &errBody))
	req.Equal("NotFound", errBody.Error)

	// And only the author may edit it
	status, _ = env.do(t, http.MethodPut, "/api/messages/"+id+"?requestUserPublicId=bob", map[string]string{"content": "x"})
	req.Equal(http.StatusForbidden, status)

	status, body = env.do(t, http.MethodPut, "/api/messages/"+id+"?requestUserPublicId=alice", map[string]string{"content": "hello!"})
	req.Equal(http.StatusOK, status)
	var edited httphandler.MessageResponse
	req.NoError(json.Unmarshal(body, &edited))
	req.True(edited.IsEdited)

	// When an admin deletes it
	status, _ = env.do(t, http.MethodDelete, "/api/messages/"+id+"?requestUserPublicId=admin", nil)
	req.Equal(http.StatusNoContent, status)

	status, _ = env.do(t, http.MethodDelete, "/api/messages/"+id+"?requestUserPublicId=admin", nil)
	req.Equal(http.StatusForbidden, status)

	status, body = env.do(t, http.MethodGet, "/api/messages/"+id, nil)
	req.Equal(http.StatusOK, status)
	req.Contains(string(body), model.DeletedPlaceholder)

	status, body = env.do(t, http.MethodGet, "/api/messages/"+id+"/exists", nil)
	req.Equal(http.StatusOK, status)
	req.JSONEq(`{"exists":true}`, string(body))
}

func TestREST_Rejections(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	status, body := env.do(t, http.MethodPost, "/api/messages", map[string]string{
		"groupPublicId": "g1", "senderPublicId": "mallory", "content": "hi",
	})
	req.Equal(http.StatusForbidden, status, string(body))

	status, _ = env.do(t, http.MethodPost, "/api/messages", map[string]string{
		"groupPublicId": "missing", "senderPublicId": "alice", "content": "hi",
	})
	req.Equal(http.StatusNotFound, status)

	status, body = env.do(t, http.MethodPost, "/api/messages", map[string]string{
		"groupPublicId": "g1", "senderPublicId": "alice", "content": strings.Repeat("a", model.MaxContentLength+1),
	})
	req.Equal(http.StatusBadRequest, status)
	req.Contains(string(body), "content")

	status, _ = env.do(t, http.MethodPost, "/api/messages", map[string]string{
		"groupPublicId": "g1", "senderPublicId": "alice", "content": "hi", "type": "VIDEO",
	})
	req.Equal(http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/messages/not-a-uuid", nil)
	req.Equal(http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/api/messages/groups/g1/history?page=x", nil)
	req.Equal(http.StatusBadRequest, status)

	req.Zero(env.repo.Len())
}

func TestREST_HistorySearchAndStatistics(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	for _, m := range []struct{ sender, content string }{
		{"alice", "Good morning"}, {"bob", "morning!"}, {"alice", "lunch?"},
	} {
		status, _ := env.do(t, http.MethodPost, "/api/messages", map[string]string{
			"groupPublicId": "g1", "senderPublicId": m.sender, "content": m.content,
		})
		req.Equal(http.StatusCreated, status)
	}

	status, body := env.do(t, http.MethodGet, "/api/messages/groups/g1/history?page=0&size=2&requestUserPublicId=bob", nil)
	req.Equal(http.StatusOK, status)
	var hist httphandler.HistoryResponse
	req.NoError(json.Unmarshal(body, &hist))
	req.Len(hist.Messages, 2)
	req.Equal("lunch?", hist.Messages[0].Content)
	req.True(hist.HasNext)
	req.Equal(int64(3), hist.TotalCount)
	req.NotNil(hist.LastMessageID)

	status, _ = env.do(t, http.MethodGet, "/api/messages/groups/g1/history?requestUserPublicId=carol", nil)
	req.Equal(http.StatusForbidden, status)

	status, body = env.do(t, http.MethodGet, "/api/messages/groups/g1/history?page=9223372036854775807&size=3&requestUserPublicId=bob", nil)
	req.Equal(http.StatusOK, status)
	var far httphandler.HistoryResponse
	req.NoError(json.Unmarshal(body, &far))
	req.Empty(far.Messages)
	req.Equal(int64(3), far.TotalCount)

	status, body = env.do(t, http.MethodPost, "/api/messages/search", map[string]any{"groupPublicId": "g1", "keyword": "MORNING"})
	req.Equal(http.StatusOK, status)
	var found httphandler.SearchResponse
	req.NoError(json.Unmarshal(body, &found))
	req.Equal(int64(2), found.TotalCount)
	req.Equal("MORNING", found.SearchKeyword)

	status, body = env.do(t, http.MethodGet, "/api/messages/groups/g1/recent?limit=1&requestUserPublicId=alice", nil)
	req.Equal(http.StatusOK, status)
	var recent []httphandler.MessageResponse
	req.NoError(json.Unmarshal(body, &recent))
	req.Len(recent, 1)

	status, body = env.do(t, http.MethodGet, "/api/messages/groups/g1/status?requestUserPublicId=alice", nil)
	req.Equal(http.StatusOK, status)
	var st httphandler.StatusResponse
	req.NoError(json.Unmarshal(body, &st))
	req.Equal(int64(3), st.TotalMessages)
	req.Len(st.ActiveUsers, 4)

	status, _ = env.do(t, http.MethodGet, "/api/messages/groups/g1/statistics?requestUserPublicId=alice", nil)
	req.Equal(http.StatusForbidden, status)

	status, body = env.do(t, http.MethodGet, "/api/messages/groups/g1/statistics?requestUserPublicId=owner", nil)
	req.Equal(http.StatusOK, status)
	var stats httphandler.StatisticsResponse
	req.NoError(json.Unmarshal(body, &stats))
	req.Equal(int64(3), stats.TextMessages)
	req.Equal("alice", stats.UserCounts[0].UserID)
}

func TestOps_ReadinessFollowsConsumer(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, false)

	status, _ := env.do(t, http.MethodGet, "/healthz", nil)
	req.Equal(http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/readyz", nil)
	req.Equal(http.StatusServiceUnavailable, status)

	req.NoError(env.consumer.Start(context.Background()))
	status, _ = env.do(t, http.MethodGet, "/readyz", nil)
	req.Equal(http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/metrics", nil)
	req.Equal(http.StatusOK, status)
	req.Contains(string(body), "chat_delivery_connections")

	status, body = env.do(t, http.MethodGet, "/debug/hub", nil)
	req.Equal(http.StatusOK, status)
	req.Contains(string(body), "total_connections")
}

type wireFrame struct {
	Event   string          `json:"event"`
	ID      string          `json:"id"`
	SentAt  int64           `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, env *testEnv, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?userId=" + userID
	c, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	t.Cleanup(func() { _ = c.Close() })

	f := readFrame(t, c)
	require.Equal(t, "connected", f.Event)
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) wireFrame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wireFrame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func subscribe(t *testing.T, c *websocket.Conn, group string) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]string{"type": "subscribe", "groupId": group}))
	require.Equal(t, "subscribed", readFrame(t, c).Event)
}

func TestWS_LiveBroadcastReachesGroupOnly(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	// Given C1 and C2 on g1 and C3 on g2
	c1 := dial(t, env, "alice")
	c2 := dial(t, env, "bob")
	c3 := dial(t, env, "carol")
	subscribe(t, c1, "g1")
	subscribe(t, c2, "g1")
	subscribe(t, c3, "g2")

	// When C1 publishes to g1
	req.NoError(c1.WriteJSON(map[string]string{"type": "publish", "groupId": "g1", "message": "hi"}))

	// Then both g1 sessions receive it with the connection identity as sender
	for _, c := range []*websocket.Conn{c1, c2} {
		f := readFrame(t, c)
		req.Equal("chat_message", f.Event)
		var p model.ChatEventPayload
		req.NoError(json.Unmarshal(f.Payload, &p))
		req.Equal("alice", p.SenderID)
		req.Equal("hi", p.Message)
		req.Equal(model.KindText, p.Kind)
	}

	// And C3 sees nothing
	req.NoError(c3.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, _, err := c3.ReadMessage()
	req.Error(err)

	// Live events never touch the message store
	req.Zero(env.repo.Len())
}

func TestWS_JoinNotifyAndRejections(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	c1 := dial(t, env, "alice")
	subscribe(t, c1, "g1")

	// Join is broadcast as a SYSTEM event
	req.NoError(c1.WriteJSON(map[string]string{"type": "join", "groupId": "g1", "username": "alice"}))
	f := readFrame(t, c1)
	req.Equal("chat_message", f.Event)
	var p model.ChatEventPayload
	req.NoError(json.Unmarshal(f.Payload, &p))
	req.Equal(model.KindSystem, p.Kind)
	req.Equal("alice님이 채팅에 참여했습니다.", p.Message)

	// Notifications reach the addressed user channel
	c2 := dial(t, env, "bob")
	req.NoError(c1.WriteJSON(map[string]string{"type": "notify", "userId": "bob", "title": "t", "content": "c"}))
	f = readFrame(t, c2)
	req.Equal("notification", f.Event)
	req.Contains(string(f.Payload), `"notificationType":"INFO"`)

	// Malformed frames and denied subscriptions get an error frame
	req.NoError(c1.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	req.Equal("error", readFrame(t, c1).Event)

	mallory := dial(t, env, "mallory")
	req.NoError(mallory.WriteJSON(map[string]string{"type": "subscribe", "groupId": "g1"}))
	f = readFrame(t, mallory)
	req.Equal("error", f.Event)
	req.Contains(string(f.Payload), "Forbidden")
}

func TestWS_RequiresIdentity(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.NotNil(res)
	req.Equal(http.StatusUnauthorized, res.StatusCode)
}

func TestLP_PollTimesOutAndDelivers(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	// Given nothing happens, the poll ends empty
	status, _ := env.do(t, http.MethodGet, "/lp/poll?userId=bob&groups=g1", nil)
	req.Equal(http.StatusNoContent, status)

	status, _ = env.do(t, http.MethodGet, "/lp/poll?userId=mallory&groups=g1", nil)
	req.Equal(http.StatusForbidden, status)

	// When a notification is published while bob polls
	type pollResult struct {
		status int
		body   []byte
		err    error
	}
	done := make(chan pollResult, 1)
	go func() {
		res, err := env.srv.Client().Get(env.srv.URL + "/lp/poll?userId=bob")
		if err != nil {
			done <- pollResult{err: err}
			return
		}
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		done <- pollResult{status: res.StatusCode, body: body, err: err}
	}()

	var got pollResult
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case got = <-done:
			break wait
		case <-tick.C:
			status, _ = env.do(t, http.MethodPost, "/api/notifications", map[string]string{"userId": "bob", "title": "t", "content": "c"})
			req.Equal(http.StatusAccepted, status)
		}
	}

	// Then the poll returns a batch with the notification
	req.NoError(got.err)
	req.Equal(http.StatusOK, got.status)
	req.Contains(string(got.body), `"event":"notification"`)
}

func TestWS_InvalidLiveFramesAreDroppedSilently(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, true)

	c1 := dial(t, env, "alice")
	subscribe(t, c1, "g1")

	// Given live frames that fail validation
	req.NoError(c1.WriteJSON(map[string]string{"type": "publish", "groupId": "g1"}))
	req.NoError(c1.WriteJSON(map[string]string{"type": "publish", "groupId": "g1", "message": "hi", "messageType": "JOIN"}))
	req.NoError(c1.WriteJSON(map[string]string{"type": "join", "groupId": "g1"}))
	req.NoError(c1.WriteJSON(map[string]string{"type": "notify", "title": "t"}))

	// When a subscription frame follows them
	req.NoError(c1.WriteJSON(map[string]string{"type": "unsubscribe", "groupId": "g1"}))

	// Then its reply is the next frame: nothing was sent back for the dropped frames
	req.Equal("unsubscribed", readFrame(t, c1).Event)

	// And subscription frames still report field errors
	req.NoError(c1.WriteJSON(map[string]string{"type": "subscribe"}))
	f := readFrame(t, c1)
	req.Equal("error", f.Event)
	req.Contains(string(f.Payload), "InvalidFrame")

	req.NoError(c1.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	_, _, err := c1.ReadMessage()
	req.Error(err)
	req.Zero(env.repo.Len())
}
