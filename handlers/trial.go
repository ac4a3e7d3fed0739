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
)

type CreateTrialRequest struct {
	Title        string `json:"title" binding:"required"`
	Status       string `json:"status" binding:"required,trialstatus"`
	Description  string `json:"description"`
	Eligibility  string `json:"eligibility"`
	Location     string `json:"location"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
}

// UpdateTrialRequest only touches the fields present in the body.
type UpdateTrialRequest struct {
	Title        *string `json:"title" binding:"omitempty,min=1"`
	Status       *string `json:"status" binding:"omitempty,trialstatus"`
	Description  *string `json:"description"`
	Eligibility  *string `json:"eligibility"`
	Location     *string `json:"location"`
	ContactEmail *string `json:"contact_email" binding:"omitempty,email"`
}

type trialRow struct {
	models.ClinicalTrial `bson:",inline"`
	Researcher           *userRef `bson:"researcher"`
}

type trialView struct {
	ID             primitive.ObjectID `json:"id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Status         models.TrialStatus `json:"status"`
	Location       string             `json:"location"`
	ResearcherID   primitive.ObjectID `json:"researcher_id"`
	ResearcherName string             `json:"researcher_name"`
}

func (r trialRow) view() trialView {
	return trialView{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         r.Status,
		Location:       r.Location,
		ResearcherID:   r.ResearcherID,
		ResearcherName: r.Researcher.name(),
	}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

func trialPipeline(match bson.M) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: newestFirst}},
	}
	return joinUser(pipeline, "researcher_id", "researcher")
}

func listTrials(c *gin.Context, match bson.M, action string) {
	ctx, cancel := requestContext(c)
	defer cancel()

	var rows []trialRow
	if err := aggregateAll(ctx, database.Trials, trialPipeline(match), &rows); err != nil {
		serverError(c, action, err)
		return
	}

	views := make([]trialView, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.view())
	}
	c.JSON(http.StatusOK, views)
}

func CreateTrial(c *gin.Context) {
	user := currentUser(c)

	var req CreateTrialRequest
	if !bindJSON(c, &req, "Title and a valid status are required") {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	now := time.Now()
	trial := models.ClinicalTrial{
		ID:           primitive.NewObjectID(),
		Title:        req.Title,
		ResearcherID: user.ID,
		Description:  req.Description,
		Status:       models.TrialStatus(req.Status),
		Eligibility:  req.Eligibility,
		Location:     req.Location,
		ContactEmail: req.ContactEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := database.Trials.InsertOne(ctx, trial); err != nil {
		serverError(c, "creating trial", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Clinical trial added successfully",
		"id":      trial.ID,
	})
}

func GetTrials(c *gin.Context) {
	listTrials(c, bson.M{}, "fetching all trials")
}

func GetRecommendedTrials(c *gin.Context) {
	re, ok := recommend.Pattern(currentUser(c).ConditionsText())
	if !ok {
		c.JSON(http.StatusOK, []trialView{})
		return
	}
	listTrials(c, recommend.MatchAny(re, "title", "description", "eligibility"), "fetching recommended trials")
}

func GetMyTrials(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	trials := []models.ClinicalTrial{}
	opts := options.Find().SetSort(newestFirst)
	if err := findAll(ctx, database.Trials, bson.M{"researcher_id": user.ID}, &trials, opts); err != nil {
		serverError(c, "fetching user trials", err)
		return
	}
	c.JSON(http.StatusOK, trials)
}

func GetTrialByID(c *gin.Context) {
	id, ok := parseID(c, "id", "trial")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var rows []trialRow
	if err := aggregateAll(ctx, database.Trials, trialPipeline(bson.M{"_id": id}), &rows); err != nil {
		serverError(c, "fetching trial", err)
		return
	}
	if len(rows) == 0 {
		fail(c, http.StatusNotFound, "Trial not found")
		return
	}

	t := rows[0]
	researcher := gin.H{"id": t.ResearcherID}
	if t.Researcher != nil {
		researcher["name"] = t.Researcher.Name
		researcher["profile_picture_url"] = t.Researcher.ProfilePictureURL
		researcher["specialties"] = t.Researcher.Conditions
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            t.ID,
		"title":         t.Title,
		"description":   t.Description,
		"status":        t.Status,
		"eligibility":   t.Eligibility,
		"location":      t.Location,
		"contact_email": t.ContactEmail,
		"researcher":    researcher,
	})
}

func findOwnedTrial(c *gin.Context, verb, action string) (trial models.ClinicalTrial, ok bool) {
	id, ok := parseID(c, "id", "trial")
	if !ok {
		return trial, false
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := database.Trials.FindOne(ctx, bson.M{"_id": id}).Decode(&trial); err != nil {
		notFoundOr(c, err, "Trial not found", action)
		return trial, false
	}
	if trial.ResearcherID != currentUser(c).ID {
		fail(c, http.StatusForbidden, "User not authorized to "+verb+" this trial")
		return trial, false
	}
	return trial, true
}

func UpdateTrial(c *gin.Context) {
	trial, ok := findOwnedTrial(c, "edit", "updating trial")
	if !ok {
		return
	}

	var req UpdateTrialRequest
	if !bindJSON(c, &req, "Invalid trial data") {
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	fields := map[string]*string{
		"title":         req.Title,
		"status":        req.Status,
		"description":   req.Description,
		"eligibility":   req.Eligibility,
		"location":      req.Location,
		"contact_email": req.ContactEmail,
	}
	for field, v := range fields {
		if v != nil {
			set[field] = *v
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var updated models.ClinicalTrial
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := database.Trials.FindOneAndUpdate(ctx, bson.M{"_id": trial.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		notFoundOr(c, err, "Trial not found", "updating trial")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Trial updated successfully",
		"trial":   updated,
	})
}

func DeleteTrial(c *gin.Context) {
	trial, ok := findOwnedTrial(c, "delete", "deleting trial")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := database.Trials.DeleteOne(ctx, bson.M{"_id": trial.ID}); err != nil {
		serverError(c, "deleting trial", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trial deleted successfully"})
}
