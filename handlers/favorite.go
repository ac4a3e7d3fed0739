package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"curalink/database"
	"curalink/metrics"
	"curalink/models"
)

type CreateFavoriteRequest struct {
	ContentID   string `json:"content_id" binding:"required,objectid"`
	ContentType string `json:"content_type" binding:"required,contenttype"`
}

func CreateFavorite(c *gin.Context) {
	user := currentUser(c)

	var req CreateFavoriteRequest
	if !bindJSON(c, &req, "A valid content ID and type are required") {
		return
	}
	contentID, _ := primitive.ObjectIDFromHex(req.ContentID)
	contentType := models.ContentType(req.ContentType)

	ctx, cancel := requestContext(c)
	defer cancel()

	exists, err := database.ContentCollection(contentType).CountDocuments(ctx, bson.M{"_id": contentID}, options.Count().SetLimit(1))
	if err != nil {
		serverError(c, "adding favorite", err)
		return
	}
	if exists == 0 {
		fail(c, http.StatusNotFound, string(contentType)+" not found")
		return
	}

	dup, err := database.Favorites.CountDocuments(ctx, bson.M{"user_id": user.ID, "content_id": contentID})
	if err != nil {
		serverError(c, "adding favorite", err)
		return
	}
	if dup > 0 {
		fail(c, http.StatusConflict, "Item already in favorites")
		return
	}

	now := time.Now()
	fav := models.Favorite{
		ID:          primitive.NewObjectID(),
		UserID:      user.ID,
		ContentID:   contentID,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := database.Favorites.InsertOne(ctx, fav); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			fail(c, http.StatusConflict, "Item already in favorites")
			return
		}
		serverError(c, "adding favorite", err)
		return
	}

	metrics.FavoritesAdded.WithLabelValues(string(contentType)).Inc()
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Added to favorites",
		"favorite": fav,
	})
}

func DeleteFavorite(c *gin.Context) {
	user := currentUser(c)
	contentID, ok := parseID(c, "id", "content")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := database.Favorites.DeleteOne(ctx, bson.M{"user_id": user.ID, "content_id": contentID})
	if err != nil {
		serverError(c, "removing favorite", err)
		return
	}
	if res.DeletedCount == 0 {
		fail(c, http.StatusNotFound, "Favorite not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from favorites"})
}

type favoritePublicationView struct {
	ID         primitive.ObjectID `json:"id"`
	Title      string             `json:"title"`
	Journal    string             `json:"journal"`
	Year       int                `json:"year"`
	Summary    string             `json:"summary"`
	AuthorName string             `json:"author_name"`
}

type favoriteTrialView struct {
	ID             primitive.ObjectID `json:"id"`
	Title          string             `json:"title"`
	Status         models.TrialStatus `json:"status"`
	ResearcherName string             `json:"researcher_name"`
}

// FavoritesResponse groups a user's favorites by type. Every list is
// non-nil and follows the order the favorites were saved in, newest first.
type FavoritesResponse struct {
	Experts      []expertView              `json:"experts"`
	Publications []favoritePublicationView `json:"publications"`
	Trials       []favoriteTrialView       `json:"trials"`
}

// LoadFavorites fetches every entity userID has favorited. The three types
// are fetched concurrently and favorites whose target is gone are skipped.
func LoadFavorites(ctx context.Context, userID primitive.ObjectID) (*FavoritesResponse, error) {
	var favorites []models.Favorite
	opts := options.Find().SetSort(newestFirst)
	if err := findAll(ctx, database.Favorites, bson.M{"user_id": userID}, &favorites, opts); err != nil {
		return nil, err
	}

	ids := make(map[models.ContentType][]primitive.ObjectID)
	order := make(map[primitive.ObjectID]int, len(favorites))
	for i, f := range favorites {
		ids[f.ContentType] = append(ids[f.ContentType], f.ContentID)
		if _, seen := order[f.ContentID]; !seen {
			order[f.ContentID] = i
		}
	}

	resp := &FavoritesResponse{
		Experts:      []expertView{},
		Publications: []favoritePublicationView{},
		Trials:       []favoriteTrialView{},
	}

	g, gctx := errgroup.WithContext(ctx)

	if userIDs := ids[models.ContentUser]; len(userIDs) > 0 {
		g.Go(func() error {
			var users []models.User
			opts := options.Find().SetProjection(bson.M{"name": 1, "profile_picture_url": 1, "conditions": 1})
			if err := findAll(gctx, database.Users, bson.M{"_id": bson.M{"$in": userIDs}}, &users, opts); err != nil {
				return err
			}
			for _, u := range users {
				resp.Experts = append(resp.Experts, expertView{ID: u.ID, Name: u.Name, ProfilePictureURL: u.ProfilePictureURL, Conditions: u.Conditions})
			}
			sort.SliceStable(resp.Experts, func(i, j int) bool {
				return order[resp.Experts[i].ID] < order[resp.Experts[j].ID]
			})
			return nil
		})
	}

	if pubIDs := ids[models.ContentPublication]; len(pubIDs) > 0 {
		g.Go(func() error {
			pipeline := joinUser(mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": pubIDs}}}},
			}, "author_id", "author")
			var rows []publicationRow
			if err := aggregateAll(gctx, database.Publications, pipeline, &rows); err != nil {
				return err
			}
			for _, r := range rows {
				resp.Publications = append(resp.Publications, favoritePublicationView{
					ID:         r.ID,
					Title:      r.Title,
					Journal:    r.Journal,
					Year:       r.Year,
					Summary:    r.Summary,
					AuthorName: r.Author.name(),
				})
			}
			sort.SliceStable(resp.Publications, func(i, j int) bool {
				return order[resp.Publications[i].ID] < order[resp.Publications[j].ID]
			})
			return nil
		})
	}

	if trialIDs := ids[models.ContentClinicalTrial]; len(trialIDs) > 0 {
		g.Go(func() error {
			pipeline := joinUser(mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": trialIDs}}}},
			}, "researcher_id", "researcher")
			var rows []trialRow
			if err := aggregateAll(gctx, database.Trials, pipeline, &rows); err != nil {
				return err
			}
			for _, r := range rows {
				resp.Trials = append(resp.Trials, favoriteTrialView{
					ID:             r.ID,
					Title:          r.Title,
					Status:         r.Status,
					ResearcherName: r.Researcher.name(),
				})
			}
			sort.SliceStable(resp.Trials, func(i, j int) bool {
				return order[resp.Trials[i].ID] < order[resp.Trials[j].ID]
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resp, nil
}

func GetFavorites(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := LoadFavorites(ctx, currentUser(c).ID)
	if err != nil {
		serverError(c, "fetching favorites", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
