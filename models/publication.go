package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Publication struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title     string             `bson:"title" json:"title"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Journal   string             `bson:"journal,omitempty" json:"journal,omitempty"`
	Year      int                `bson:"year,omitempty" json:"year,omitempty"`
	Link      string             `bson:"link,omitempty" json:"link,omitempty"`
	Abstract  string             `bson:"abstract" json:"abstract"`
	Summary   string             `bson:"summary" json:"summary"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
