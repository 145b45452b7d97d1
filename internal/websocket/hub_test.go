package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

func signRole(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "0b8f6c1e-3c0f-4b61-9a57-3f1b2c3d4e5f",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func newServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, testSecret) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestServeWsRejectsNonAdmins(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newServer(t, hub)

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/ws?token=" + signRole(t, "CUSTOMER"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", resp.StatusCode)
	}
}

func TestHubDeliversToAdmin(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := newServer(t, hub)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + signRole(t, "ADMIN")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// registration is asynchronous; publish until the client sees a message
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	go func() {
		for time.Now().Before(deadline) {
			hub.Publish([]byte(`{"type":"low_stock"}`))
			time.Sleep(20 * time.Millisecond)
		}
	}()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), "low_stock") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())
	accepted := 0
	for i := 0; i < 300; i++ {
		if hub.Publish([]byte("x")) {
			accepted++
		}
	}
	if accepted != 256 {
		t.Fatalf("expected the queue to accept 256 messages, got %d", accepted)
	}
}
