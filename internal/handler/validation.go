package handler

import (
	"fmt"

	"colabtrack/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the domain enum checks used in request binding tags.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	rules := map[string]validator.Func{
		"task_status": func(fl validator.FieldLevel) bool {
			return model.TaskStatus(fl.Field().String()).Valid()
		},
		"task_priority": func(fl validator.FieldLevel) bool {
			return model.TaskPriority(fl.Field().String()).Valid()
		},
		"user_role": func(fl validator.FieldLevel) bool {
			return model.Role(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}
