package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"curalink/models"
)

func testUser() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: "Ada", Role: models.RoleResearcher}
}

func TestGenerateAndParse(t *testing.T) {
	require.NoError(t, Init("test-secret", time.Hour))

	u := testUser()
	token, expires, err := GenerateToken(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	id, claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, models.RoleResearcher, claims.Role)
	assert.Equal(t, "Ada", claims.Name)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	require.NoError(t, Init("first", time.Hour))
	token, _, err := GenerateToken(testUser())
	require.NoError(t, err)

	require.NoError(t, Init("second", time.Hour))
	_, _, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	require.NoError(t, Init("test-secret", time.Hour))

	claims := &Claims{
		UserID: primitive.NewObjectID().Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, _, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	require.NoError(t, Init("test-secret", time.Hour))

	claims := &Claims{UserID: primitive.NewObjectID().Hex()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsBadUserID(t *testing.T) {
	require.NoError(t, Init("test-secret", time.Hour))

	claims := &Claims{UserID: "not-an-object-id"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, _, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInitRejectsEmptySecret(t *testing.T) {
	assert.Error(t, Init("", time.Hour))
}
