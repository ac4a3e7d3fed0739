package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContentType string

const (
	ContentUser          ContentType = "User"
	ContentPublication   ContentType = "Publication"
	ContentClinicalTrial ContentType = "ClinicalTrial"
)

// ContentTypes lists every favoritable type in a stable order.
var ContentTypes = []ContentType{ContentUser, ContentPublication, ContentClinicalTrial}

func (t ContentType) Valid() bool {
	switch t {
	case ContentUser, ContentPublication, ContentClinicalTrial:
		return true
	}
	return false
}

type Favorite struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	ContentID   primitive.ObjectID `bson:"content_id" json:"content_id"`
	ContentType ContentType        `bson:"content_type" json:"content_type"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
