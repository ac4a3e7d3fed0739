package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"curalink/config"
	"curalink/database"
	"curalink/handlers"
	"curalink/middleware"
	"curalink/models"
	"curalink/websocket"
)

// SetupRouter wires every route. hub may be nil, which leaves /ws unmounted.
func SetupRouter(cfg *config.Config, log *zap.Logger, hub *websocket.Manager) *gin.Engine {
	handlers.RegisterValidations()

	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.Logger(log),
		middleware.Metrics(),
		gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
			log.Error("panic recovered", zap.Any("panic", recovered), zap.String("request_id", middleware.RequestID(c)))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}),
	)

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if hub != nil {
		router.GET("/ws", gin.WrapF(websocket.WebSocketHandler(hub, wsAuthenticator)))
	}

	api := router.Group("/api")
	api.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the CuraLink API"})
	})
	api.GET("/health", health)

	authn := middleware.Authenticate(log)
	limiter := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimitPerMinute))
	researcherOnly := func(message string) gin.HandlerFunc {
		return middleware.RequireRole(models.RoleResearcher, message)
	}
	patientOnly := func(message string) gin.HandlerFunc {
		return middleware.RequireRole(models.RolePatient, message)
	}

	users := api.Group("/users")
	{
		users.POST("/register", limiter, handlers.Register)
		users.POST("/login", limiter, handlers.Login)
		users.POST("/google", limiter, handlers.GoogleAuthWithCredential)
		users.GET("/google/auth-url", handlers.GetGoogleAuthURL)
		users.GET("/google/callback", handlers.GoogleOAuthCallback)
		users.PUT("", authn, handlers.UpdateUser)
		users.DELETE("", authn, handlers.DeleteUser)
		users.POST("/avatar", authn, handlers.UploadAvatar)
		users.POST("/profile-completion", authn, handlers.ProfileCompletion)
		users.GET("/dashboard-stats", authn, handlers.GetDashboardStats)
		users.GET("/recommended-experts", authn, handlers.GetRecommendedExperts)
		users.GET("/researchers", handlers.GetResearchers)
		users.GET("/:id", handlers.GetUserByID)
	}

	pubs := api.Group("/publications")
	{
		pubs.POST("", authn, handlers.CreatePublication)
		pubs.GET("", handlers.GetPublications)
		pubs.GET("/recommended", authn, handlers.GetRecommendedPublications)
		pubs.GET("/user/:userId", handlers.GetPublicationsByUser)
		pubs.GET("/:id", handlers.GetPublicationByID)
		pubs.PUT("/:id", authn, handlers.UpdatePublication)
		pubs.DELETE("/:id", authn, handlers.DeletePublication)
	}

	trials := api.Group("/trials")
	{
		trials.GET("", handlers.GetTrials)
		trials.POST("", authn, researcherOnly("Forbidden: Only researchers can create trials"), handlers.CreateTrial)
		trials.GET("/my-trials", authn, handlers.GetMyTrials)
		trials.GET("/recommended", authn, patientOnly("This feature is for patients only."), handlers.GetRecommendedTrials)
		trials.GET("/:id", handlers.GetTrialByID)
		trials.PUT("/:id", authn, handlers.UpdateTrial)
		trials.DELETE("/:id", authn, handlers.DeleteTrial)
	}

	forums := api.Group("/forums")
	{
		forums.GET("", handlers.GetForums)
		forums.POST("", authn, researcherOnly("Forbidden: Only researchers can create forums"), handlers.CreateForum)
		forums.GET("/:id", handlers.GetForumByID)
	}

	posts := api.Group("/posts")
	{
		posts.POST("", authn, patientOnly("Forbidden: Only patients can create posts"), handlers.CreatePost)
		posts.POST("/reply", authn, researcherOnly("Forbidden: Only researchers can reply"), handlers.CreateReply)
		posts.GET("/:id", handlers.GetPostByID)
	}

	favorites := api.Group("/favorites", authn)
	{
		favorites.GET("", handlers.GetFavorites)
		favorites.POST("", handlers.CreateFavorite)
		favorites.DELETE("/:id", handlers.DeleteFavorite)
	}

	push := api.Group("/push")
	{
		push.GET("/vapid-public-key", handlers.GetVapidPublicKey)
		push.POST("/subscribe", authn, handlers.SubscribePush)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"message": "Endpoint not found", "path": c.Request.URL.Path})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})

	return router
}

func health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	mongo := "up"
	if err := database.Ping(ctx); err != nil {
		status, code, mongo = "degraded", http.StatusServiceUnavailable, "down"
	}
	c.JSON(code, gin.H{
		"status":  status,
		"mongodb": mongo,
		"time":    time.Now().Unix(),
	})
}

func wsAuthenticator(ctx context.Context, token string) (string, error) {
	user, err := middleware.LoadUser(ctx, token)
	if err != nil {
		return "", err
	}
	return user.ID.Hex(), nil
}
