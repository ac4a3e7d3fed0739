package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"curalink/database"
	"curalink/models"
)

type CreateForumRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type forumRow struct {
	models.Forum `bson:",inline"`
	Author       *userRef `bson:"author"`
}

type forumPostRow struct {
	models.Post `bson:",inline"`
	Author      *userRef `bson:"author"`
}

func CreateForum(c *gin.Context) {
	user := currentUser(c)

	var req CreateForumRequest
	if !bindJSON(c, &req, "Title is required") {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		fail(c, http.StatusBadRequest, "Title is required")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	now := time.Now()
	forum := models.Forum{
		ID:        primitive.NewObjectID(),
		Title:     title,
		CreatedBy: user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != "" {
		forum.Description = &req.Description
	}

	if _, err := database.Forums.InsertOne(ctx, forum); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			fail(c, http.StatusConflict, "A forum with this title already exists")
			return
		}
		serverError(c, "creating forum", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Forum created successfully",
		"id":      forum.ID,
	})
}

func GetForums(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	pipeline := joinUser(mongo.Pipeline{
		{{Key: "$sort", Value: newestFirst}},
	}, "created_by_user_id", "author")

	var rows []forumRow
	if err := aggregateAll(ctx, database.Forums, pipeline, &rows); err != nil {
		serverError(c, "fetching forums", err)
		return
	}

	forums := make([]gin.H, 0, len(rows))
	for _, f := range rows {
		forums = append(forums, gin.H{
			"id":          f.ID,
			"title":       f.Title,
			"description": f.Description,
			"author_name": f.Author.name(),
			"created_at":  f.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, forums)
}

// GetForumByID returns the forum and its posts, newest first.
func GetForumByID(c *gin.Context) {
	id, ok := parseID(c, "id", "forum")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var forums []forumRow
	pipeline := joinUser(mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}, "created_by_user_id", "author")
	if err := aggregateAll(ctx, database.Forums, pipeline, &forums); err != nil {
		serverError(c, "fetching forum data", err)
		return
	}
	if len(forums) == 0 {
		fail(c, http.StatusNotFound, "Forum not found")
		return
	}
	forum := forums[0]

	var posts []forumPostRow
	pipeline = joinUser(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"forum_id": id}}},
		{{Key: "$sort", Value: newestFirst}},
	}, "author_id", "author")
	if err := aggregateAll(ctx, database.Posts, pipeline, &posts); err != nil {
		serverError(c, "fetching forum data", err)
		return
	}

	postViews := make([]gin.H, 0, len(posts))
	for _, p := range posts {
		postViews = append(postViews, gin.H{
			"id":          p.ID,
			"title":       p.Title,
			"author_name": p.Author.name(),
			"created_at":  p.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"forum": gin.H{
			"id":          forum.ID,
			"title":       forum.Title,
			"description": forum.Description,
			"author_name": forum.Author.name(),
		},
		"posts": postViews,
	})
}
