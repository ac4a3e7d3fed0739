package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RolePatient    Role = "patient"
	RoleResearcher Role = "researcher"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleResearcher
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password,omitempty" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	AuthProvider string             `bson:"auth_provider,omitempty" json:"-"`
	GoogleID     string             `bson:"google_id,omitempty" json:"-"`

	ProfilePictureURL *string `bson:"profile_picture_url" json:"profile_picture_url"`
	// Conditions for patients, specialties for researchers.
	Conditions *string `bson:"conditions" json:"conditions"`
	About      *string `bson:"about" json:"about"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Profile is the shape returned from login, profile update and google sign-in.
type Profile struct {
	ID                primitive.ObjectID `json:"id"`
	Name              string             `json:"name"`
	Email             string             `json:"email"`
	Role              Role               `json:"role"`
	ProfilePictureURL *string            `json:"profile_picture_url"`
	Conditions        *string            `json:"conditions"`
	About             *string            `json:"about"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		ProfilePictureURL: u.ProfilePictureURL,
		Conditions:        u.Conditions,
		About:             u.About,
	}
}

// ConditionsText returns the free-text conditions or "" when unset.
func (u *User) ConditionsText() string {
	if u.Conditions == nil {
		return ""
	}
	return *u.Conditions
}
