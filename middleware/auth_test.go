package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"curalink/auth"
	"curalink/models"
	"curalink/mongotest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", Authenticate(zap.NewNop()), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID.Hex(), "userId": c.GetString(ContextUserIDKey)})
	})
	r.POST("/forums", Authenticate(zap.NewNop()), RequireRole(models.RoleResearcher, "Forbidden"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestAuthenticateRejectsMissingAndMalformedHeaders(t *testing.T) {
	require.NoError(t, auth.Init("test-secret", time.Hour))
	r := protectedRouter()

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.Contains(t, w.Body.String(), "No token, authorization denied")
	}
}

func TestAuthenticateRejectsInvalidToken(t *testing.T) {
	require.NoError(t, auth.Init("test-secret", time.Hour))
	r := protectedRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token is not valid")
}

func TestAuthenticateLoadsUser(t *testing.T) {
	require.NoError(t, auth.Init("test-secret", time.Hour))
	mt := mongotest.New(t)

	user := &models.User{ID: primitive.NewObjectID(), Name: "Grace", Role: models.RoleResearcher}
	token, _, err := auth.GenerateToken(user)
	require.NoError(t, err)

	mt.Run("user found", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, user)))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		protectedRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), user.ID.Hex())
	})

	mt.Run("token in query", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, user)))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
		protectedRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	mt.Run("user deleted", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Empty())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		protectedRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "User not found")
	})
}

func TestRequireRole(t *testing.T) {
	require.NoError(t, auth.Init("test-secret", time.Hour))
	mt := mongotest.New(t)

	patient := &models.User{ID: primitive.NewObjectID(), Name: "Pat", Role: models.RolePatient}
	token, _, err := auth.GenerateToken(patient)
	require.NoError(t, err)

	mt.Run("patient is forbidden", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, patient)))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/forums", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		protectedRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
