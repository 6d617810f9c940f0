package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// formatBindError turns a ShouldBindJSON failure into a client message.
// Validator failures list every offending field by its JSON name.
func formatBindError(err error) string {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		msgs := make([]string, 0, len(ves))
		for _, fe := range ves {
			msgs = append(msgs, fieldMessage(fe))
		}
		return strings.Join(msgs, "; ")
	}
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se), errors.As(err, &te):
		return "invalid JSON body"
	}
	return "invalid request body"
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// jsonFieldName lower-cases the first letter of a Go field name, which
// matches the camelCase JSON tags of the request DTOs.
func jsonFieldName(goName string) string {
	if goName == "" {
		return goName
	}
	switch goName {
	case "CourseID":
		return "courseId"
	case "LectureID":
		return "lectureId"
	}
	return strings.ToLower(goName[:1]) + goName[1:]
}
