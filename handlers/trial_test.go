package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"curalink/models"
	"curalink/mongotest"
)

func TestCreateTrial(t *testing.T) {
	mt := mongotest.New(t)
	researcher := newUser("rhea", models.RoleResearcher)
	patient := newUser("pat", models.RolePatient)

	mt.Run("created", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, researcher)), mongotest.OK(1))

		w := serve(t, http.MethodPost, "/trials", tokenFor(t, researcher), gin.H{"title": "CAR-T for glioma", "status": "Recruiting"})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Clinical trial added successfully")
	})

	mt.Run("unknown status", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, researcher)))

		w := serve(t, http.MethodPost, "/trials", tokenFor(t, researcher), gin.H{"title": "CAR-T for glioma", "status": "Paused"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Title and a valid status are required")
	})

	mt.Run("patients are refused", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, patient)))

		w := serve(t, http.MethodPost, "/trials", tokenFor(t, patient), gin.H{"title": "CAR-T for glioma", "status": "Recruiting"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestTrialOwnership(t *testing.T) {
	mt := mongotest.New(t)

	owner := newUser("owner", models.RoleResearcher)
	other := newUser("other", models.RoleResearcher)
	trial := models.ClinicalTrial{
		ID:           primitive.NewObjectID(),
		Title:        "Metformin in early diabetes",
		ResearcherID: owner.ID,
		Status:       models.TrialRecruiting,
	}
	path := "/trials/" + trial.ID.Hex()

	mt.Run("non-owner cannot edit", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, other)), mongotest.Cursor(mongotest.Doc(t, trial)))

		w := serve(t, http.MethodPut, path, tokenFor(t, other), gin.H{"status": "Completed"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "User not authorized to edit this trial")
	})

	mt.Run("non-owner cannot delete", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, other)), mongotest.Cursor(mongotest.Doc(t, trial)))

		w := serve(t, http.MethodDelete, path, tokenFor(t, other), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	mt.Run("missing trial", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, owner)), mongotest.Empty())

		w := serve(t, http.MethodPut, path, tokenFor(t, owner), gin.H{"status": "Completed"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Trial not found")
	})

	mt.Run("partial update", func(mt *mtest.T) {
		mongotest.Bind(mt)
		updated := trial
		updated.Status = models.TrialCompleted
		mt.AddMockResponses(
			mongotest.Cursor(mongotest.Doc(t, owner)),
			mongotest.Cursor(mongotest.Doc(t, trial)),
			mongotest.Value(mongotest.Doc(t, updated)),
		)

		w := serve(t, http.MethodPut, path, tokenFor(t, owner), gin.H{"status": "Completed"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Trial models.ClinicalTrial `json:"trial"`
		}
		decode(t, w, &resp)
		assert.Equal(t, models.TrialCompleted, resp.Trial.Status)
		assert.Equal(t, trial.Title, resp.Trial.Title)
	})

	mt.Run("invalid status on update", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, owner)), mongotest.Cursor(mongotest.Doc(t, trial)))

		w := serve(t, http.MethodPut, path, tokenFor(t, owner), gin.H{"status": "Paused"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetTrialByID(t *testing.T) {
	mt := mongotest.New(t)
	specialties := "Endocrinology"
	researcher := &userRef{ID: primitive.NewObjectID(), Name: "rhea", Role: models.RoleResearcher, Conditions: &specialties}
	trial := models.ClinicalTrial{
		ID:           primitive.NewObjectID(),
		Title:        "Metformin in early diabetes",
		ResearcherID: researcher.ID,
		Status:       models.TrialRecruiting,
		Location:     "Lagos",
	}

	mt.Run("includes the researcher block", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, trialRow{ClinicalTrial: trial, Researcher: researcher})))

		w := serve(t, http.MethodGet, "/trials/"+trial.ID.Hex(), "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Title      string `json:"title"`
			Location   string `json:"location"`
			Researcher struct {
				ID          primitive.ObjectID `json:"id"`
				Name        string             `json:"name"`
				Specialties *string            `json:"specialties"`
			} `json:"researcher"`
		}
		decode(t, w, &resp)
		assert.Equal(t, trial.Title, resp.Title)
		assert.Equal(t, "Lagos", resp.Location)
		assert.Equal(t, researcher.ID, resp.Researcher.ID)
		assert.Equal(t, "rhea", resp.Researcher.Name)
		require.NotNil(t, resp.Researcher.Specialties)
		assert.Equal(t, specialties, *resp.Researcher.Specialties)
	})

	mt.Run("missing trial", func(mt *mtest.T) {
		mongotest.Bind(mt)
		mt.AddMockResponses(mongotest.Empty())

		w := serve(t, http.MethodGet, "/trials/"+trial.ID.Hex(), "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetRecommendedTrials(t *testing.T) {
	mt := mongotest.New(t)

	mt.Run("no conditions", func(mt *mtest.T) {
		mongotest.Bind(mt)
		patient := newUser("pat", models.RolePatient)
		mt.AddMockResponses(mongotest.Cursor(mongotest.Doc(t, patient)))
		mt.ClearEvents()

		w := serve(t, http.MethodGet, "/trials/recommended", tokenFor(t, patient), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
		_, queried := mongotest.Sent(mt, "aggregate", "clinicaltrials")
		assert.False(t, queried)
	})

	mt.Run("matches title, description or eligibility", func(mt *mtest.T) {
		mongotest.Bind(mt)
		patient := newUser("pat", models.RolePatient)
		patient.Conditions = strPtr("diabetes")
		trial := models.ClinicalTrial{ID: primitive.NewObjectID(), Title: "Metformin in early diabetes", Status: models.TrialRecruiting}
		mt.AddMockResponses(
			mongotest.Cursor(mongotest.Doc(t, patient)),
			mongotest.Cursor(mongotest.Doc(t, trialRow{ClinicalTrial: trial})),
		)
		mt.ClearEvents()

		w := serve(t, http.MethodGet, "/trials/recommended", tokenFor(t, patient), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var views []trialView
		decode(t, w, &views)
		require.Len(t, views, 1)
		assert.Equal(t, trial.ID, views[0].ID)

		cmd, ok := mongotest.Sent(mt, "aggregate", "clinicaltrials")
		require.True(t, ok)
		match, ok := mongotest.Stage(cmd, "$match")
		require.True(t, ok)
		assert.Equal(t, []string{"title", "description", "eligibility"}, orFields(t, match))
	})
}

// orFields lists the field each $or branch of a match filter tests.
func orFields(t *testing.T, match bson.Raw) []string {
	t.Helper()
	branches, err := match.Lookup("$or").Array().Values()
	require.NoError(t, err)
	var fields []string
	for _, b := range branches {
		elems, err := b.Document().Elements()
		require.NoError(t, err)
		require.Len(t, elems, 1)
		fields = append(fields, elems[0].Key())
	}
	return fields
}
