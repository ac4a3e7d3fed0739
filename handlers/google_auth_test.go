package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"google.golang.org/api/idtoken"

	"curalink/models"
	"curalink/mongotest"
)

func withGoogle(t *testing.T, validate func(context.Context, string, string) (*idtoken.Payload, error)) {
	t.Helper()
	SetGoogleOAuth("client-id", "client-secret", "http://localhost/callback")
	prev := validateIDToken
	validateIDToken = validate
	t.Cleanup(func() {
		validateIDToken = prev
		SetGoogleOAuth("", "", "")
	})
}

func TestGoogleSignInNotConfigured(t *testing.T) {
	SetGoogleOAuth("", "", "")

	w := serve(t, http.MethodPost, "/google", "", gin.H{"credential": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Google sign-in is not configured")
}

func TestGoogleSignIn(t *testing.T) {
	mt := mongotest.New(t)

	valid := func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if (token != "good" && token != "unverified") || audience != "client-id" {
			return nil, errors.New("bad token")
		}
		if token == "unverified" {
			return &idtoken.Payload{
				Subject: "google-456",
				Claims:  map[string]interface{}{"email": "gina@example.com", "email_verified": false},
			}, nil
		}
		return &idtoken.Payload{
			Subject: "google-123",
			Claims:  map[string]interface{}{"email": "Gina@Example.com", "email_verified": true, "name": "Gina"},
		}, nil
	}

	mt.Run("rejected credential", func(mt *mtest.T) {
		mongotest.Bind(mt)
		withGoogle(mt.T, valid)

		w := serve(t, http.MethodPost, "/google", "", gin.H{"credential": "forged"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid Google credential")
	})

	mt.Run("creates a patient", func(mt *mtest.T) {
		mongotest.Bind(mt)
		withGoogle(mt.T, valid)
		mt.AddMockResponses(mongotest.Empty(), mongotest.OK(1))

		w := serve(t, http.MethodPost, "/google", "", gin.H{"credential": "good"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Token string         `json:"token"`
			User  models.Profile `json:"user"`
			IsNew bool           `json:"is_new_user"`
		}
		decode(t, w, &resp)
		assert.True(t, resp.IsNew)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "gina@example.com", resp.User.Email)
		assert.Equal(t, models.RolePatient, resp.User.Role)
	})

	mt.Run("links an existing account", func(mt *mtest.T) {
		mongotest.Bind(mt)
		withGoogle(mt.T, valid)
		existing := newUser("gina", models.RoleResearcher)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, existing)), mongotest.OK(1))

		w := serve(t, http.MethodPost, "/google", "", gin.H{"credential": "good"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"is_new_user":false`)
		assert.Contains(t, w.Body.String(), `"role":"researcher"`)
	})

	mt.Run("unverified email cannot claim an account", func(mt *mtest.T) {
		mongotest.Bind(mt)
		withGoogle(mt.T, valid)
		existing := newUser("gina", models.RoleResearcher)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, existing)))
		mt.ClearEvents()

		w := serve(t, http.MethodPost, "/google", "", gin.H{"credential": "unverified"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Google email is not verified")
		assert.NotContains(t, w.Body.String(), "token")
		assert.Nil(t, mt.GetStartedEvent(), "no user lookup")
	})
}

func TestFetchGoogleUserInfoReadsVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"g1","email":"gina@example.com","verified_email":true,"name":"Gina"}`))
	}))
	defer srv.Close()

	prev := googleUserInfoURL
	googleUserInfoURL = srv.URL
	defer func() { googleUserInfoURL = prev }()

	info, err := fetchGoogleUserInfo(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.True(t, info.VerifiedEmail)
	assert.Equal(t, "gina@example.com", info.Email)
}
