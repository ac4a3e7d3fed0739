package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"curalink/models"
)

type SubscribePushRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func GetVapidPublicKey(c *gin.Context) {
	if !pusher.Enabled() {
		fail(c, http.StatusServiceUnavailable, "Push notifications are not configured")
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": pusher.PublicKey()})
}

func SubscribePush(c *gin.Context) {
	if !pusher.Enabled() {
		fail(c, http.StatusServiceUnavailable, "Push notifications are not configured")
		return
	}
	user := currentUser(c)

	var req SubscribePushRequest
	if !bindJSON(c, &req, "Endpoint and keys are required") {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	keys := models.PushKeys{P256dh: req.Keys.P256dh, Auth: req.Keys.Auth}
	if err := pusher.Subscribe(ctx, user.ID, req.Endpoint, keys); err != nil {
		serverError(c, "saving push subscription", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Push subscription saved successfully"})
}
