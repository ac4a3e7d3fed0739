package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"curalink/middleware"
	"curalink/models"
	"curalink/notify"
	"curalink/storage"
	"curalink/websocket"
)

const requestTimeout = 10 * time.Second

var (
	logger    = zap.NewNop()
	wsManager *websocket.Manager
	pusher    *notify.Pusher
	uploader  storage.Uploader
)

// SetLogger sets the logger used by every handler.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// SetWebSocketManager sets the hub that receives post and reply events.
func SetWebSocketManager(manager *websocket.Manager) {
	wsManager = manager
}

// SetPusher sets the web push sender. nil disables push notifications.
func SetPusher(p *notify.Pusher) {
	pusher = p
}

// SetUploader sets the avatar store. nil disables avatar uploads.
func SetUploader(u storage.Uploader) {
	uploader = u
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// bindJSON binds the body into v and answers 400 with message on failure.
func bindJSON(c *gin.Context, v interface{}, message string) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": message, "details": err.Error()})
		return false
	}
	return true
}

// parseID reads an ObjectID path parameter, answering 400 when malformed.
func parseID(c *gin.Context, param, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid "+what+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// serverError logs err and answers 500 with "Error <action>: <err>".
func serverError(c *gin.Context, action string, err error) {
	logger.Error("request failed",
		zap.String("action", action),
		zap.String("request_id", middleware.RequestID(c)),
		zap.Error(err),
	)
	fail(c, http.StatusInternalServerError, "Error "+action+": "+err.Error())
}

// notFoundOr answers 404 with message for mongo.ErrNoDocuments and 500
// otherwise.
func notFoundOr(c *gin.Context, err error, message, action string) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		fail(c, http.StatusNotFound, message)
		return
	}
	serverError(c, action, err)
}

// currentUser returns the caller. Routes using it sit behind Authenticate.
func currentUser(c *gin.Context) *models.User {
	user, _ := middleware.CurrentUser(c)
	return user
}

func publish(topic, eventType string, payload interface{}) {
	if wsManager != nil {
		wsManager.Publish(topic, eventType, payload)
	}
}

// userRef is the slice of a user document joined onto other resources.
type userRef struct {
	ID                primitive.ObjectID `bson:"_id"`
	Name              string             `bson:"name"`
	Role              models.Role        `bson:"role"`
	ProfilePictureURL *string            `bson:"profile_picture_url"`
	Conditions        *string            `bson:"conditions"`
}

func (u *userRef) name() string {
	if u == nil {
		return ""
	}
	return u.Name
}

// joinUser appends the stages that attach the user referenced by
// localField as a single embedded document named as.
func joinUser(pipeline mongo.Pipeline, localField, as string) mongo.Pipeline {
	return append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: localField},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: as},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + as},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	)
}

// aggregateAll runs pipeline against coll and decodes every result into out,
// which must point to a non-nil slice.
func aggregateAll(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

// findAll is aggregateAll for a plain find.
func findAll(ctx context.Context, coll *mongo.Collection, filter interface{}, out interface{}, opts ...*options.FindOptions) error {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
