package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/subsync/backend/internal/interfaces/http/dto"
)

// CommerceIDTag validates a WooCommerce resource id: 1 to 20 digits, no leading zero.
const CommerceIDTag = "commerce_id"

var bindingTags = []string{"json", "form", "uri"}

// SetupValidator registers the commerce_id rule on gin's validator and
// names fields by their json, form or uri tag in errors.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
	// Only fails on an empty tag or nil func.
	_ = v.RegisterValidation(CommerceIDTag, isCommerceID)
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range bindingTags {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return fld.Name
}

func isCommerceID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" || len(id) > 20 || id[0] == '0' {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatValidationErrors converts binding errors into the error envelope.
// Errors that are not field errors produce an envelope without details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError aborts with 400 and the validation envelope
func HandleValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func fieldMessage(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case CommerceIDTag:
		return "Must be a positive numeric id"
	case "min":
		return fmt.Sprintf("Must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("Must be at most %s%s", fe.Param(), unit)
	case "numeric":
		return "Must be numeric"
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}
