package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/steamsedu/steams/pkg/errors"
	"github.com/steamsedu/steams/pkg/response"
	appValidator "github.com/steamsedu/steams/pkg/validator"
)

const invalidPayload = "invalid request payload"

// ruleMessages renders a failed tag; %[1]s is the field and %[2]s the param.
var ruleMessages = map[string]string{
	"required":     "%[1]s is required",
	"min":          "%[1]s must be at least %[2]s",
	"max":          "%[1]s must be at most %[2]s",
	"pushendpoint": "%[1]s must be an https push service URL",
}

// bindAndValidate decodes the JSON body into dest and applies its validate
// tags. On failure the error envelope is written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation(formatValidationError(err)))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return invalidPayload
	}

	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		messages = append(messages, describeFailure(failure))
	}
	return strings.Join(messages, "; ")
}

func describeFailure(failure appValidator.ValidationError) string {
	field := strings.ReplaceAll(failure.Field, "_", " ")
	if field == "" {
		field = "field"
	}
	if format, ok := ruleMessages[failure.Tag]; ok {
		return fmt.Sprintf(format, field, failure.Param)
	}
	if failure.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
}
