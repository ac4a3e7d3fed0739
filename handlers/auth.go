package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"curalink/auth"
	"curalink/database"
	"curalink/metrics"
	"curalink/models"
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

type RegisterRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     models.Role `json:"role" binding:"omitempty,oneof=patient researcher"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req, "Invalid user data") {
		return
	}
	if req.Role == "" {
		req.Role = models.RolePatient
	}
	email := normalizeEmail(req.Email)

	ctx, cancel := requestContext(c)
	defer cancel()

	count, err := database.Users.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		serverError(c, "registering user", err)
		return
	}
	if count > 0 {
		fail(c, http.StatusConflict, "Email already in use")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		serverError(c, "registering user", err)
		return
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hashed),
		Role:         req.Role,
		AuthProvider: "email",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := database.Users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			fail(c, http.StatusConflict, "Email already in use")
			return
		}
		serverError(c, "registering user", err)
		return
	}

	metrics.Registrations.WithLabelValues(string(user.Role)).Inc()
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"_id":     user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"role":    user.Role,
	})
}

func Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req, "Email and password are required") {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var user models.User
	err := database.Users.FindOne(ctx, bson.M{"email": normalizeEmail(req.Email)}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		serverError(c, "logging in user", err)
		return
	}

	// Accounts created through Google have no password.
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expires, err := auth.GenerateToken(&user)
	if err != nil {
		serverError(c, "logging in user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in successfully",
		"token":   token,
		"expires": expires.Unix(),
		"user":    user.Profile(),
	})
}
