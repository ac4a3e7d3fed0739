package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"curalink/database"
	"curalink/models"
	"curalink/notify"
)

type CreatePostRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
	ForumID string `json:"forum_id" binding:"required,objectid"`
}

type CreateReplyRequest struct {
	Content string `json:"content" binding:"required"`
	PostID  string `json:"post_id" binding:"required,objectid"`
}

type replyRow struct {
	models.Reply `bson:",inline"`
	Author       *userRef `bson:"author"`
}

func CreatePost(c *gin.Context) {
	user := currentUser(c)

	var req CreatePostRequest
	if !bindJSON(c, &req, "Title, content, and forum ID are required") {
		return
	}
	forumID, _ := primitive.ObjectIDFromHex(req.ForumID)

	ctx, cancel := requestContext(c)
	defer cancel()

	count, err := database.Forums.CountDocuments(ctx, bson.M{"_id": forumID})
	if err != nil {
		serverError(c, "creating post", err)
		return
	}
	if count == 0 {
		fail(c, http.StatusNotFound, "Forum not found")
		return
	}

	now := time.Now()
	post := models.Post{
		ID:        primitive.NewObjectID(),
		Title:     req.Title,
		Content:   req.Content,
		AuthorID:  user.ID,
		ForumID:   forumID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := database.Posts.InsertOne(ctx, post); err != nil {
		serverError(c, "creating post", err)
		return
	}

	publish("forum:"+forumID.Hex(), "post_created", gin.H{
		"id":          post.ID,
		"title":       post.Title,
		"author_name": user.Name,
		"created_at":  post.CreatedAt,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Post created successfully",
		"id":      post.ID,
	})
}

func CreateReply(c *gin.Context) {
	user := currentUser(c)

	var req CreateReplyRequest
	if !bindJSON(c, &req, "Content and post ID are required") {
		return
	}
	postID, _ := primitive.ObjectIDFromHex(req.PostID)

	ctx, cancel := requestContext(c)
	defer cancel()

	var post models.Post
	opts := options.FindOne().SetProjection(bson.M{"title": 1, "author_id": 1})
	if err := database.Posts.FindOne(ctx, bson.M{"_id": postID}, opts).Decode(&post); err != nil {
		notFoundOr(c, err, "Post not found", "creating reply")
		return
	}

	now := time.Now()
	reply := models.Reply{
		ID:        primitive.NewObjectID(),
		Content:   req.Content,
		AuthorID:  user.ID,
		PostID:    postID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := database.Replies.InsertOne(ctx, reply); err != nil {
		serverError(c, "creating reply", err)
		return
	}

	publish("post:"+postID.Hex(), "reply_created", gin.H{
		"id":                  reply.ID,
		"content":             reply.Content,
		"created_at":          reply.CreatedAt,
		"author_name":         user.Name,
		"profile_picture_url": user.ProfilePictureURL,
		"specialties":         user.Conditions,
	})
	if post.AuthorID != user.ID {
		pusher.SendAsync(post.AuthorID, notify.Notification{
			Title: user.Name + " replied to \"" + notify.Truncate(post.Title, 60) + "\"",
			Body:  notify.Truncate(reply.Content, 100),
			URL:   "/posts/" + postID.Hex(),
		})
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Reply added successfully",
		"id":      reply.ID,
	})
}

// GetPostByID returns the post and its replies, oldest first.
func GetPostByID(c *gin.Context) {
	id, ok := parseID(c, "id", "post")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var posts []forumPostRow
	pipeline := joinUser(mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}, "author_id", "author")
	if err := aggregateAll(ctx, database.Posts, pipeline, &posts); err != nil {
		serverError(c, "fetching post data", err)
		return
	}
	if len(posts) == 0 {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}
	post := posts[0]

	var replies []replyRow
	pipeline = joinUser(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"post_id": id}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}}}},
	}, "author_id", "author")
	if err := aggregateAll(ctx, database.Replies, pipeline, &replies); err != nil {
		serverError(c, "fetching post data", err)
		return
	}

	replyViews := make([]gin.H, 0, len(replies))
	for _, r := range replies {
		view := gin.H{
			"id":          r.ID,
			"content":     r.Content,
			"created_at":  r.CreatedAt,
			"author_name": r.Author.name(),
		}
		if r.Author != nil {
			view["profile_picture_url"] = r.Author.ProfilePictureURL
			view["specialties"] = r.Author.Conditions
		}
		replyViews = append(replyViews, view)
	}

	var authorRole models.Role
	if post.Author != nil {
		authorRole = post.Author.Role
	}
	c.JSON(http.StatusOK, gin.H{
		"post": gin.H{
			"id":          post.ID,
			"title":       post.Title,
			"content":     post.Content,
			"forum_id":    post.ForumID,
			"created_at":  post.CreatedAt,
			"author_name": post.Author.name(),
			"author_role": authorRole,
		},
		"replies": replyViews,
	})
}
