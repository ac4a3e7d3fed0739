package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TrialStatus string

const (
	TrialRecruiting          TrialStatus = "Recruiting"
	TrialActiveNotRecruiting TrialStatus = "Active, not recruiting"
	TrialCompleted           TrialStatus = "Completed"
	TrialOther               TrialStatus = "Other"
)

func (s TrialStatus) Valid() bool {
	switch s {
	case TrialRecruiting, TrialActiveNotRecruiting, TrialCompleted, TrialOther:
		return true
	}
	return false
}

type ClinicalTrial struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string             `bson:"title" json:"title"`
	ResearcherID primitive.ObjectID `bson:"researcher_id" json:"researcher_id"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Status       TrialStatus        `bson:"status" json:"status"`
	Eligibility  string             `bson:"eligibility,omitempty" json:"eligibility,omitempty"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	ContactEmail string             `bson:"contact_email,omitempty" json:"contact_email,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
