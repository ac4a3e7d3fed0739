package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"curalink/auth"
	"curalink/database"
	"curalink/metrics"
	"curalink/models"
)

const oauthStateCookie = "curalink_oauth_state"

var (
	googleOAuthConfig *oauth2.Config
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	// validateIDToken is swapped out by tests.
	validateIDToken = idtoken.Validate
)

// SetGoogleOAuth enables the Google sign-in routes. An empty client id
// leaves them answering 503.
func SetGoogleOAuth(clientID, clientSecret, redirectURL string) {
	if clientID == "" || clientSecret == "" {
		googleOAuthConfig = nil
		return
	}
	googleOAuthConfig = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type GoogleAuthRequest struct {
	Credential string `json:"credential" binding:"required"`
}

func googleDisabled(c *gin.Context) bool {
	if googleOAuthConfig == nil {
		fail(c, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return true
	}
	return false
}

// GoogleAuthWithCredential verifies a Google Identity Services ID token.
func GoogleAuthWithCredential(c *gin.Context) {
	if googleDisabled(c) {
		return
	}

	var req GoogleAuthRequest
	if !bindJSON(c, &req, "Google credential is required") {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	payload, err := validateIDToken(ctx, req.Credential, googleOAuthConfig.ClientID)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid Google credential")
		return
	}

	info := GoogleUserInfo{
		ID:            payload.Subject,
		Email:         stringClaim(payload.Claims, "email"),
		VerifiedEmail: boolClaim(payload.Claims, "email_verified"),
		Name:          stringClaim(payload.Claims, "name"),
		Picture:       stringClaim(payload.Claims, "picture"),
	}
	completeGoogleSignIn(c, ctx, info)
}

func stringClaim(claims map[string]interface{}, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// boolClaim also accepts "true", which older tokens use for email_verified.
func boolClaim(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func GetGoogleAuthURL(c *gin.Context) {
	if googleDisabled(c) {
		return
	}

	state := primitive.NewObjectID().Hex()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"url": googleOAuthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)})
}

func GoogleOAuthCallback(c *gin.Context) {
	if googleDisabled(c) {
		return
	}

	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "Authorization code missing")
		return
	}
	if state, err := c.Cookie(oauthStateCookie); err != nil || state != c.Query("state") {
		fail(c, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	token, err := googleOAuthConfig.Exchange(ctx, code)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Failed to exchange authorization code")
		return
	}

	info, err := fetchGoogleUserInfo(ctx, googleOAuthConfig.Client(ctx, token))
	if err != nil {
		serverError(c, "fetching Google profile", err)
		return
	}
	completeGoogleSignIn(c, ctx, info)
}

func fetchGoogleUserInfo(ctx context.Context, client *http.Client) (GoogleUserInfo, error) {
	var info GoogleUserInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return info, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&info)
	return info, err
}

func completeGoogleSignIn(c *gin.Context, ctx context.Context, info GoogleUserInfo) {
	if info.Email == "" {
		fail(c, http.StatusBadRequest, "Email not provided by Google")
		return
	}
	// Accounts are matched by email, so an unverified one could claim someone else's.
	if !info.VerifiedEmail {
		fail(c, http.StatusUnauthorized, "Google email is not verified")
		return
	}

	user, isNew, err := findOrCreateGoogleUser(ctx, info)
	if err != nil {
		serverError(c, "signing in with Google", err)
		return
	}

	token, expires, err := auth.GenerateToken(user)
	if err != nil {
		serverError(c, "signing in with Google", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Logged in successfully",
		"token":       token,
		"expires":     expires.Unix(),
		"user":        user.Profile(),
		"is_new_user": isNew,
	})
}

// findOrCreateGoogleUser links a Google identity to the account with the same
// email, creating a patient account when none exists.
func findOrCreateGoogleUser(ctx context.Context, info GoogleUserInfo) (*models.User, bool, error) {
	email := normalizeEmail(info.Email)

	var user models.User
	err := database.Users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == nil {
		set := bson.M{"updatedAt": time.Now()}
		if user.GoogleID == "" && info.ID != "" {
			set["google_id"] = info.ID
			user.GoogleID = info.ID
		}
		if user.ProfilePictureURL == nil && info.Picture != "" {
			set["profile_picture_url"] = info.Picture
			user.ProfilePictureURL = &info.Picture
		}
		if _, err := database.Users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set}); err != nil {
			logger.Sugar().Warnw("linking Google account", "user_id", user.ID.Hex(), "error", err)
		}
		return &user, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	name := info.Name
	if name == "" {
		name = email
	}
	now := time.Now()
	user = models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		Role:         models.RolePatient,
		AuthProvider: "google",
		GoogleID:     info.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if info.Picture != "" {
		user.ProfilePictureURL = &info.Picture
	}

	if _, err := database.Users.InsertOne(ctx, user); err != nil {
		return nil, false, err
	}
	metrics.Registrations.WithLabelValues(string(user.Role)).Inc()
	return &user, true, nil
}
