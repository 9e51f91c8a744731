package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mes-platform/route-execution-service/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// InitValidator initializes the validator with custom validators
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		registerCustomValidators(validate)

		validate.RegisterTagNameFunc(jsonTagName)

		// Gin binds with its own validator instance
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerCustomValidators(v)
			v.RegisterTagNameFunc(jsonTagName)
		}
	})

	return validate
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	if validate == nil {
		return InitValidator()
	}
	return validate
}

func registerCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("order_number", validateOrderNumber)
	_ = v.RegisterValidation("part_number", validatePartNumber)
	_ = v.RegisterValidation("work_center_id", validateWorkCenterID)
	_ = v.RegisterValidation("serial_number", validateSerialNumber)
	_ = v.RegisterValidation("capture_mode", validateCaptureMode)
	_ = v.RegisterValidation("time_capture_mode", validateTimeCaptureMode)
	_ = v.RegisterValidation("safe_string", validateSafeString)
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return fld.Name
	}
	return name
}

// Custom validators

var (
	orderNumberRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,29}$`)
	partNumberRegex  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,49}$`)
	workCenterRegex  = regexp.MustCompile(`^WC-[A-Z0-9][A-Z0-9-]{1,29}$`)
	serialRegex      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{2,49}$`)
	safeStringRegex  = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?@#$%&*()+=:;'"<>\/\[\]{}|\\~\x60]+$`)
)

func validateOrderNumber(fl validator.FieldLevel) bool {
	return orderNumberRegex.MatchString(fl.Field().String())
}

func validatePartNumber(fl validator.FieldLevel) bool {
	return partNumberRegex.MatchString(fl.Field().String())
}

func validateWorkCenterID(fl validator.FieldLevel) bool {
	return workCenterRegex.MatchString(fl.Field().String())
}

func validateSerialNumber(fl validator.FieldLevel) bool {
	return serialRegex.MatchString(fl.Field().String())
}

func validateCaptureMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "ElectronicRequired", "ElectronicOptional", "PaperOnly":
		return true
	}
	return false
}

func validateTimeCaptureMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "Automated", "Manual", "Hybrid":
		return true
	}
	return false
}

func validateSafeString(fl validator.FieldLevel) bool {
	return safeStringRegex.MatchString(fl.Field().String())
}

// ValidationErrorFormatter formats validation errors into a map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "uuid":
		return "must be a valid UUID"
	case "order_number":
		return "must be a valid order number (uppercase alphanumeric with dashes)"
	case "part_number":
		return "must be a valid part number"
	case "work_center_id":
		return "must be a valid work center ID (format: WC-xxxx)"
	case "serial_number":
		return "must be a valid serial number"
	case "capture_mode":
		return "must be one of: ElectronicRequired, ElectronicOptional, PaperOnly"
	case "time_capture_mode":
		return "must be one of: Automated, Manual, Hybrid"
	case "safe_string":
		return "contains invalid characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// BindAndValidate binds request body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			fields := ValidationErrorFormatter(validationErrors)
			return errors.ErrValidationWithFields("validation failed", fields)
		}
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// ValidateStruct validates a struct using the validator
func ValidateStruct(obj interface{}) *errors.AppError {
	v := GetValidator()
	if err := v.Struct(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			fields := ValidationErrorFormatter(validationErrors)
			return errors.ErrValidationWithFields("validation failed", fields)
		}
		return errors.ErrBadRequest("validation failed: " + err.Error())
	}
	return nil
}

// SanitizeString removes null bytes and trims whitespace
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	return s
}

// InputSanitizer middleware sanitizes query string inputs
func InputSanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		for key, values := range query {
			for i, v := range values {
				values[i] = SanitizeString(v)
			}
			query[key] = values
		}
		c.Request.URL.RawQuery = query.Encode()

		c.Next()
	}
}

// ContentType middleware ensures proper content type for POST/PUT/PATCH
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			contentType := c.GetHeader("Content-Type")
			if contentType == "" || !strings.HasPrefix(contentType, "application/json") {
				// Attachment uploads post multipart bodies
				if strings.HasPrefix(contentType, "multipart/form-data") {
					c.Next()
					return
				}
				if c.Request.ContentLength > 0 {
					AbortWithAppError(c, &errors.AppError{
						Code:       "INVALID_CONTENT_TYPE",
						Message:    "Content-Type must be application/json",
						HTTPStatus: 415,
					})
					return
				}
			}
		}
		c.Next()
	}
}
