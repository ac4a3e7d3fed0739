package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"curalink/models"
)

var registerOnce sync.Once

// RegisterValidations adds the domain validators to gin's binding engine:
// objectid, trialstatus and contenttype.
func RegisterValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		})
		_ = v.RegisterValidation("trialstatus", func(fl validator.FieldLevel) bool {
			return models.TrialStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("contenttype", func(fl validator.FieldLevel) bool {
			return models.ContentType(fl.Field().String()).Valid()
		})
	})
}
