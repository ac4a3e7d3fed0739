package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"curalink/database"
	"curalink/models"
	"curalink/recommend"
)

const maxAvatarBytes = 5 << 20

var publicUserProjection = bson.M{
	"name":                1,
	"email":               1,
	"role":                1,
	"profile_picture_url": 1,
	"conditions":          1,
	"about":               1,
	"createdAt":           1,
	"updatedAt":           1,
}

type UpdateUserRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email" binding:"omitempty,email"`
	ProfilePictureURL string `json:"profile_picture_url" binding:"omitempty,url"`
	Conditions        string `json:"conditions"`
	About             string `json:"about"`
}

// UpdateUser changes the caller's profile. Empty fields keep their value.
func UpdateUser(c *gin.Context) {
	user := currentUser(c)

	var req UpdateUserRequest
	if !bindJSON(c, &req, "Invalid profile data") {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if name := strings.TrimSpace(req.Name); name != "" {
		set["name"] = name
	}
	if req.ProfilePictureURL != "" {
		set["profile_picture_url"] = req.ProfilePictureURL
	}
	if req.Conditions != "" {
		set["conditions"] = req.Conditions
	}
	if req.About != "" {
		set["about"] = req.About
	}
	if email := normalizeEmail(req.Email); email != "" && email != user.Email {
		taken, err := database.Users.CountDocuments(ctx, bson.M{"email": email, "_id": bson.M{"$ne": user.ID}})
		if err != nil {
			serverError(c, "updating user", err)
			return
		}
		if taken > 0 {
			fail(c, http.StatusConflict, "Email already in use")
			return
		}
		set["email"] = email
	}

	var updated models.User
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"password": 0})
	err := database.Users.FindOneAndUpdate(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if mongo.IsDuplicateKeyError(err) {
		fail(c, http.StatusConflict, "Email already in use")
		return
	}
	if err != nil {
		notFoundOr(c, err, "User not found", "updating user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    updated.Profile(),
	})
}

// DeleteUser removes the caller along with everything they authored. The
// user document goes last so a failed cascade can be retried with the same token.
func DeleteUser(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	cascade := []struct {
		coll   *mongo.Collection
		filter bson.M
	}{
		{database.Favorites, bson.M{"user_id": user.ID}},
		{database.Publications, bson.M{"author_id": user.ID}},
		{database.Trials, bson.M{"researcher_id": user.ID}},
		{database.Posts, bson.M{"author_id": user.ID}},
		{database.Replies, bson.M{"author_id": user.ID}},
		{database.PushSubs, bson.M{"user_id": user.ID}},
	}
	for _, step := range cascade {
		if _, err := step.coll.DeleteMany(ctx, step.filter); err != nil {
			serverError(c, "deleting user", err)
			return
		}
	}

	res, err := database.Users.DeleteOne(ctx, bson.M{"_id": user.ID})
	if err != nil {
		serverError(c, "deleting user", err)
		return
	}
	if res.DeletedCount == 0 {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func GetResearchers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	researchers := []models.User{}
	opts := options.Find().SetProjection(publicUserProjection).SetSort(bson.D{{Key: "name", Value: 1}})
	if err := findAll(ctx, database.Users, bson.M{"role": models.RoleResearcher}, &researchers, opts); err != nil {
		serverError(c, "fetching researchers", err)
		return
	}
	c.JSON(http.StatusOK, researchers)
}

func GetUserByID(c *gin.Context) {
	id, ok := parseID(c, "id", "user")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var user models.User
	opts := options.FindOne().SetProjection(publicUserProjection)
	if err := database.Users.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&user); err != nil {
		notFoundOr(c, err, "User not found", "fetching user")
		return
	}
	c.JSON(http.StatusOK, user)
}

type expertView struct {
	ID                primitive.ObjectID `json:"_id"`
	Name              string             `json:"name"`
	ProfilePictureURL *string            `json:"profile_picture_url"`
	Conditions        *string            `json:"conditions"`
}

func GetRecommendedExperts(c *gin.Context) {
	user := currentUser(c)

	experts := []expertView{}
	re, ok := recommend.Pattern(user.ConditionsText())
	if !ok {
		c.JSON(http.StatusOK, experts)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	filter := recommend.MatchAny(re, "conditions")
	filter["role"] = models.RoleResearcher
	filter["_id"] = bson.M{"$ne": user.ID}

	var researchers []models.User
	opts := options.Find().SetProjection(publicUserProjection)
	if err := findAll(ctx, database.Users, filter, &researchers, opts); err != nil {
		serverError(c, "fetching recommended experts", err)
		return
	}
	for _, r := range researchers {
		experts = append(experts, expertView{ID: r.ID, Name: r.Name, ProfilePictureURL: r.ProfilePictureURL, Conditions: r.Conditions})
	}
	c.JSON(http.StatusOK, experts)
}

// GetDashboardStats summarizes a researcher's activity.
func GetDashboardStats(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	pubCount, err := database.Publications.CountDocuments(ctx, bson.M{"author_id": user.ID})
	if err != nil {
		serverError(c, "fetching stats", err)
		return
	}
	replyCount, err := database.Replies.CountDocuments(ctx, bson.M{"author_id": user.ID})
	if err != nil {
		serverError(c, "fetching stats", err)
		return
	}
	others := bson.M{"role": models.RoleResearcher, "_id": bson.M{"$ne": user.ID}}
	collaboratorCount, err := database.Users.CountDocuments(ctx, others)
	if err != nil {
		serverError(c, "fetching stats", err)
		return
	}

	repliedPostIDs, err := database.Replies.Distinct(ctx, "post_id", bson.M{"author_id": user.ID})
	if err != nil {
		serverError(c, "fetching stats", err)
		return
	}
	if repliedPostIDs == nil {
		repliedPostIDs = []interface{}{}
	}

	var unanswered []models.Post
	postOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(5).
		SetProjection(bson.M{"title": 1, "createdAt": 1})
	postFilter := bson.M{"author_id": bson.M{"$ne": user.ID}, "_id": bson.M{"$nin": repliedPostIDs}}
	if err := findAll(ctx, database.Posts, postFilter, &unanswered, postOpts); err != nil {
		serverError(c, "fetching stats", err)
		return
	}

	var collaborators []models.User
	userOpts := options.Find().SetLimit(6).SetProjection(bson.M{"name": 1, "profile_picture_url": 1, "conditions": 1})
	if err := findAll(ctx, database.Users, others, &collaborators, userOpts); err != nil {
		serverError(c, "fetching stats", err)
		return
	}

	collabViews := make([]gin.H, 0, len(collaborators))
	for _, u := range collaborators {
		collabViews = append(collabViews, gin.H{
			"id":                  u.ID,
			"name":                u.Name,
			"profile_picture_url": u.ProfilePictureURL,
			"specialties":         u.Conditions,
		})
	}
	postViews := make([]gin.H, 0, len(unanswered))
	for _, p := range unanswered {
		postViews = append(postViews, gin.H{"id": p.ID, "title": p.Title})
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"publicationCount":   pubCount,
			"replyCount":         replyCount,
			"collaboratorCount":  collaboratorCount,
			"repliesNeededCount": len(postViews),
		},
		"collaborators":   collabViews,
		"unansweredPosts": postViews,
	})
}

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadAvatar stores the multipart "avatar" file and points the caller's
// profile picture at it.
func UploadAvatar(c *gin.Context) {
	if uploader == nil {
		fail(c, http.StatusServiceUnavailable, "Avatar storage is not configured")
		return
	}
	user := currentUser(c)

	header, err := c.FormFile("avatar")
	if err != nil {
		fail(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	if header.Size > maxAvatarBytes {
		fail(c, http.StatusBadRequest, "Avatar must be 5MB or smaller")
		return
	}

	file, err := header.Open()
	if err != nil {
		serverError(c, "uploading avatar", err)
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		serverError(c, "uploading avatar", err)
		return
	}
	contentType := http.DetectContentType(head[:n])
	ext, ok := avatarTypes[contentType]
	if !ok {
		fail(c, http.StatusBadRequest, "Avatar must be a JPEG, PNG, WebP or GIF image")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		serverError(c, "uploading avatar", err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	key := fmt.Sprintf("avatars/%s-%d%s", user.ID.Hex(), time.Now().Unix(), ext)
	url, err := uploader.Upload(ctx, key, file, contentType)
	if err != nil {
		serverError(c, "uploading avatar", err)
		return
	}

	_, err = database.Users.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"profile_picture_url": url, "updatedAt": time.Now()}},
	)
	if err != nil {
		serverError(c, "uploading avatar", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":             "Avatar updated successfully",
		"profile_picture_url": url,
	})
}

type ProfileCompletionRequest struct {
	Text string `json:"text" binding:"required"`
}

// ProfileCompletion turns a free-text description into a conditions list
// the client can offer for the profile.
func ProfileCompletion(c *gin.Context) {
	var req ProfileCompletionRequest
	if !bindJSON(c, &req, "Text is required") {
		return
	}
	conditions := recommend.ExtractConditions(req.Text)
	c.JSON(http.StatusOK, gin.H{
		"conditions": conditions,
		"suggested":  strings.Join(conditions, ", "),
	})
}
