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
	"curalink/recommend"
	"curalink/summary"
)

type PublicationRequest struct {
	Title    string `json:"title" binding:"required"`
	Journal  string `json:"journal"`
	Year     int    `json:"year" binding:"omitempty,min=1000,max=9999"`
	Link     string `json:"link" binding:"omitempty,url"`
	Abstract string `json:"abstract" binding:"required"`
}

type publicationRow struct {
	models.Publication `bson:",inline"`
	Author             *userRef `bson:"author"`
}

type publicationView struct {
	ID         primitive.ObjectID `json:"id"`
	Title      string             `json:"title"`
	Journal    string             `json:"journal"`
	Year       int                `json:"year"`
	Link       string             `json:"link"`
	Summary    string             `json:"summary"`
	AuthorID   primitive.ObjectID `json:"author_id"`
	AuthorName string             `json:"author_name"`
}

func (r publicationRow) view() publicationView {
	return publicationView{
		ID:         r.ID,
		Title:      r.Title,
		Journal:    r.Journal,
		Year:       r.Year,
		Link:       r.Link,
		Summary:    r.Summary,
		AuthorID:   r.AuthorID,
		AuthorName: r.Author.name(),
	}
}

var newestYearFirst = bson.D{{Key: "year", Value: -1}, {Key: "createdAt", Value: -1}}

// listPublications runs match, sorts by year and joins the author name.
func listPublications(c *gin.Context, match bson.M, action string) {
	ctx, cancel := requestContext(c)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: newestYearFirst}},
	}
	pipeline = joinUser(pipeline, "author_id", "author")

	var rows []publicationRow
	if err := aggregateAll(ctx, database.Publications, pipeline, &rows); err != nil {
		serverError(c, action, err)
		return
	}

	views := make([]publicationView, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.view())
	}
	c.JSON(http.StatusOK, views)
}

func CreatePublication(c *gin.Context) {
	user := currentUser(c)

	var req PublicationRequest
	if !bindJSON(c, &req, "Title and abstract are required") {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	now := time.Now()
	pub := models.Publication{
		ID:        primitive.NewObjectID(),
		Title:     req.Title,
		AuthorID:  user.ID,
		Journal:   req.Journal,
		Year:      req.Year,
		Link:      req.Link,
		Abstract:  req.Abstract,
		Summary:   summary.Summarize(req.Abstract),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := database.Publications.InsertOne(ctx, pub); err != nil {
		serverError(c, "creating publication", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Publication added successfully",
		"publication": pub,
	})
}

func GetPublications(c *gin.Context) {
	listPublications(c, bson.M{}, "fetching all publications")
}

func GetRecommendedPublications(c *gin.Context) {
	re, ok := recommend.Pattern(currentUser(c).ConditionsText())
	if !ok {
		c.JSON(http.StatusOK, []publicationView{})
		return
	}
	listPublications(c, recommend.MatchAny(re, "title", "abstract", "summary"), "fetching recommended publications")
}

func GetPublicationsByUser(c *gin.Context) {
	authorID, ok := parseID(c, "userId", "user")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pubs := []models.Publication{}
	opts := options.Find().SetSort(newestYearFirst)
	if err := findAll(ctx, database.Publications, bson.M{"author_id": authorID}, &pubs, opts); err != nil {
		serverError(c, "fetching publications", err)
		return
	}
	c.JSON(http.StatusOK, pubs)
}

func GetPublicationByID(c *gin.Context) {
	id, ok := parseID(c, "id", "publication")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var pub models.Publication
	if err := database.Publications.FindOne(ctx, bson.M{"_id": id}).Decode(&pub); err != nil {
		notFoundOr(c, err, "Publication not found", "fetching publication")
		return
	}
	c.JSON(http.StatusOK, pub)
}

// findOwnedPublication loads a publication and checks the caller wrote it.
// It answers the request itself when ok is false.
func findOwnedPublication(c *gin.Context, verb, action string) (pub models.Publication, ok bool) {
	id, ok := parseID(c, "id", "publication")
	if !ok {
		return pub, false
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := database.Publications.FindOne(ctx, bson.M{"_id": id}).Decode(&pub); err != nil {
		notFoundOr(c, err, "Publication not found", action)
		return pub, false
	}
	if pub.AuthorID != currentUser(c).ID {
		fail(c, http.StatusForbidden, "User not authorized to "+verb+" this publication")
		return pub, false
	}
	return pub, true
}

func UpdatePublication(c *gin.Context) {
	pub, ok := findOwnedPublication(c, "update", "updating publication")
	if !ok {
		return
	}

	var req PublicationRequest
	if !bindJSON(c, &req, "Title and abstract are required") {
		return
	}

	if req.Abstract != pub.Abstract {
		pub.Summary = summary.Summarize(req.Abstract)
	}
	pub.Title = req.Title
	pub.Journal = req.Journal
	pub.Year = req.Year
	pub.Link = req.Link
	pub.Abstract = req.Abstract
	pub.UpdatedAt = time.Now()

	ctx, cancel := requestContext(c)
	defer cancel()

	_, err := database.Publications.UpdateOne(ctx, bson.M{"_id": pub.ID}, bson.M{"$set": bson.M{
		"title":     pub.Title,
		"journal":   pub.Journal,
		"year":      pub.Year,
		"link":      pub.Link,
		"abstract":  pub.Abstract,
		"summary":   pub.Summary,
		"updatedAt": pub.UpdatedAt,
	}})
	if err != nil {
		serverError(c, "updating publication", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Publication updated successfully",
		"publication": pub,
	})
}

func DeletePublication(c *gin.Context) {
	pub, ok := findOwnedPublication(c, "delete", "deleting publication")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := database.Publications.DeleteOne(ctx, bson.M{"_id": pub.ID}); err != nil {
		serverError(c, "deleting publication", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Publication deleted successfully"})
}
