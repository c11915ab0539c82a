package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CreateRatingInput is the request schema for a new rating.
type CreateRatingInput struct {
	RestaurantName    string `json:"restaurant_name" validate:"required,max=100"`
	RestaurantType    string `json:"restaurant_type" validate:"required,max=120"`
	RestaurantAddress string `json:"restaurant_address" validate:"required,max=150"`
	Rating            *int   `json:"rating" validate:"required,min=1,max=5"`
	Meal              string `json:"meal" validate:"required"`
	Calories          *int   `json:"calories" validate:"required,min=0"`
	UserID            *int64 `json:"user_id" validate:"omitempty,min=1"`
}

func (in *CreateRatingInput) normalize() {
	in.RestaurantName = strings.TrimSpace(in.RestaurantName)
	in.RestaurantType = strings.TrimSpace(in.RestaurantType)
	in.RestaurantAddress = strings.TrimSpace(in.RestaurantAddress)
	in.Meal = strings.TrimSpace(in.Meal)
}

// UpdateRatingInput is the request schema for a partial update. Nil fields
// are left unchanged.
type UpdateRatingInput struct {
	RestaurantName    *string `json:"restaurant_name" validate:"omitempty,min=1,max=100"`
	RestaurantType    *string `json:"restaurant_type" validate:"omitempty,min=1,max=120"`
	RestaurantAddress *string `json:"restaurant_address" validate:"omitempty,min=1,max=150"`
	Rating            *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Meal              *string `json:"meal" validate:"omitempty,min=1"`
	Calories          *int    `json:"calories" validate:"omitempty,min=0"`
	UserID            *int64  `json:"user_id" validate:"omitempty,min=1"`
}

func (in *UpdateRatingInput) normalize() {
	for _, field := range []*string{in.RestaurantName, in.RestaurantType, in.RestaurantAddress, in.Meal} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
}

// Empty reports whether the update carries no fields.
func (in UpdateRatingInput) Empty() bool {
	return in.RestaurantName == nil && in.RestaurantType == nil && in.RestaurantAddress == nil &&
		in.Rating == nil && in.Meal == nil && in.Calories == nil && in.UserID == nil
}

// RatingFilter narrows List results. All set filters apply together.
type RatingFilter struct {
	RestaurantName *string
	RestaurantType *string
	MinRating      *int `validate:"omitempty,min=1,max=5"`
	MaxRating      *int `validate:"omitempty,min=1,max=5"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return toSnake(field.Name)
		}
		return name
	})
	return v
}

// validationError converts validator output into a ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "cannot be blank"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
