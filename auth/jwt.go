package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"curalink/models"
)

var (
	jwtSecret []byte
	tokenTTL  = time.Hour
)

var ErrInvalidToken = errors.New("token is not valid")

type Claims struct {
	UserID            string      `json:"id"`
	Role              models.Role `json:"role"`
	Name              string      `json:"name"`
	ProfilePictureURL *string     `json:"profile_picture_url"`
	jwt.RegisteredClaims
}

// Init sets the signing secret and token lifetime. It must run before any
// token is issued or verified.
func Init(secret string, ttl time.Duration) error {
	if secret == "" {
		return fmt.Errorf("JWT secret is empty")
	}
	jwtSecret = []byte(secret)
	if ttl > 0 {
		tokenTTL = ttl
	}
	return nil
}

func GenerateToken(u *models.User) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(tokenTTL)

	claims := &Claims{
		UserID:            u.ID.Hex(),
		Role:              u.Role,
		Name:              u.Name,
		ProfilePictureURL: u.ProfilePictureURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseToken verifies the signature and expiry and returns the user id.
func ParseToken(tokenString string) (primitive.ObjectID, *Claims, error) {
	if len(jwtSecret) == 0 {
		return primitive.NilObjectID, nil, fmt.Errorf("JWT secret not initialized")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return primitive.NilObjectID, nil, ErrInvalidToken
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, nil, ErrInvalidToken
	}
	return userID, claims, nil
}
