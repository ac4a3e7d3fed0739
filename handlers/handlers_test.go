package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"curalink/auth"
	"curalink/middleware"
	"curalink/models"
	"curalink/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
	bcryptCost = bcrypt.MinCost
	RegisterValidations()
	if err := auth.Init("test-secret", time.Hour); err != nil {
		panic(err)
	}
}

// testRouter mounts the handlers under test behind the real auth middleware.
// Every authenticated request consumes one mock reply for the user lookup
// before the handler runs.
func testRouter() *gin.Engine {
	r := gin.New()
	authn := middleware.Authenticate(zap.NewNop())

	r.POST("/register", Register)
	r.POST("/login", Login)
	r.POST("/google", GoogleAuthWithCredential)

	r.PUT("/users/me", authn, UpdateUser)
	r.DELETE("/users/me", authn, DeleteUser)
	r.GET("/experts", authn, GetRecommendedExperts)
	r.POST("/profile/completion", authn, ProfileCompletion)
	r.GET("/dashboard", authn, GetDashboardStats)
	r.POST("/avatar", authn, UploadAvatar)
	r.POST("/push/subscribe", authn, SubscribePush)

	r.GET("/publications/recommended", authn, GetRecommendedPublications)
	r.PUT("/publications/:id", authn, UpdatePublication)
	r.DELETE("/publications/:id", authn, DeletePublication)

	r.POST("/trials", authn, middleware.RequireRole(models.RoleResearcher, "Only researchers can add trials"), CreateTrial)
	r.GET("/trials/recommended", authn, GetRecommendedTrials)
	r.GET("/trials/:id", GetTrialByID)
	r.PUT("/trials/:id", authn, UpdateTrial)
	r.DELETE("/trials/:id", authn, DeleteTrial)

	r.POST("/forums", authn, CreateForum)
	r.GET("/forums/:id", GetForumByID)
	r.POST("/posts", authn, CreatePost)
	r.GET("/posts/:id", GetPostByID)
	r.POST("/posts/reply", authn, CreateReply)

	r.POST("/favorites", authn, CreateFavorite)
	r.GET("/favorites", authn, GetFavorites)
	r.DELETE("/favorites/:id", authn, DeleteFavorite)
	return r
}

func newUser(name string, role models.Role) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: name, Email: name + "@example.com", Role: role}
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, _, err := auth.GenerateToken(u)
	require.NoError(t, err)
	return token
}

func serve(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

// subscribeLive starts a hub, installs it for the handlers and returns a
// client connection already subscribed to topic.
func subscribeLive(t *testing.T, topic string) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewManager(zap.NewNop())
	go hub.Start(ctx)
	SetWebSocketManager(hub)

	accept := func(context.Context, string) (string, error) { return "listener", nil }
	srv := httptest.NewServer(websocket.WebSocketHandler(hub, accept))
	t.Cleanup(func() {
		SetWebSocketManager(nil)
		srv.Close()
		cancel()
	})

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?token=t", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Equal(t, "connected", readEvent(t, conn).Type)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "topic": topic}))
	require.Equal(t, "subscribed", readEvent(t, conn).Type)
	require.Eventually(t, func() bool { return hub.Subscribers(topic) == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

type liveEvent struct {
	Type    string                 `json:"type"`
	Topic   string                 `json:"topic"`
	Payload map[string]interface{} `json:"payload"`
}

func readEvent(t *testing.T, conn *ws.Conn) liveEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev liveEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}
