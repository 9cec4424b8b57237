package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/events"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/monitoring"
)

type frame struct {
	Type    string       `json:"type"`
	Message string       `json:"message"`
	Event   events.Event `json:"event"`
}

func setupServer(t *testing.T, origins []string) (*httptest.Server, *events.Hub, *monitoring.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := events.NewHub(nil)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.GET("/events", NewHandler(hub, metrics, origins, nil).HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub, metrics
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello frame
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "system", hello.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestStreamEvents(t *testing.T) {
	srv, hub, metrics := setupServer(t, nil)
	conn := dial(t, srv, "")

	assert.Equal(t, 1, hub.Subscribers())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventSubscribers))

	hub.Publish(events.Event{Kind: events.EnvironmentCreated, Environment: "1.1", Label: "child"})

	f := readFrame(t, conn)
	assert.Equal(t, "event", f.Type)
	assert.Equal(t, events.EnvironmentCreated, f.Event.Kind)
	assert.Equal(t, "child", f.Event.Label)
	assert.NotEmpty(t, f.Event.ID)
}

func TestStreamFilter(t *testing.T) {
	srv, hub, _ := setupServer(t, nil)
	conn := dial(t, srv, "?environment=2.1")

	hub.Publish(events.Event{Kind: events.ApplicationLaunched, Environment: "1.1", URL: "file://skip"})
	hub.Publish(events.Event{Kind: events.ApplicationLaunched, Environment: "2.1", URL: "file://keep"})

	f := readFrame(t, conn)
	assert.Equal(t, "file://keep", f.Event.URL)
}

func TestPing(t *testing.T) {
	srv, _, _ := setupServer(t, nil)
	conn := dial(t, srv, "")

	require.NoError(t, conn.WriteJSON(message{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)
}

func TestDisconnectUnsubscribes(t *testing.T) {
	srv, hub, metrics := setupServer(t, nil)
	conn := dial(t, srv, "")
	require.Equal(t, 1, hub.Subscribers())

	conn.Close()

	assert.Eventually(t, func() bool {
		return hub.Subscribers() == 0 && testutil.ToFloat64(metrics.EventSubscribers) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	srv, _, _ := setupServer(t, []string{"http://localhost:3000"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:3000")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
