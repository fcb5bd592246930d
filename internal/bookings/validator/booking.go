package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"roombook/internal/bookings/interval"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// jsonFieldName reports fields by their wire name so clients see start_time,
// not StartTime.
func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}

// Validate checks a create request and returns its parsed interval.
func (v *BookingValidator) Validate(req *model.BookingRequest) (interval.Interval, error) {
	if err := v.structErrors(req); err != nil {
		return interval.Interval{}, err
	}
	return parseInterval(req.StartTime, req.EndTime)
}

// ValidateUpdate merges the patch onto current and returns the resulting
// interval. Omitted bounds keep their current value.
func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate, current interval.Interval) (interval.Interval, error) {
	if err := v.structErrors(update); err != nil {
		return interval.Interval{}, err
	}

	start, end := current.Start, current.End
	var errs ValidationErrors

	if update.StartTime != nil {
		t, err := interval.ParseTimestamp(*update.StartTime)
		if err != nil {
			errs = append(errs, timestampError("start_time", err))
		}
		start = t
	}
	if update.EndTime != nil {
		t, err := interval.ParseTimestamp(*update.EndTime)
		if err != nil {
			errs = append(errs, timestampError("end_time", err))
		}
		end = t
	}
	if len(errs) > 0 {
		return interval.Interval{}, errs
	}

	iv, err := interval.New(start, end)
	if err != nil {
		return interval.Interval{}, ValidationErrors{{Field: "end_time", Message: "end_time must be after start_time"}}
	}
	return iv, nil
}

// ValidateInterval parses a raw query interval, as sent to the availability
// endpoints.
func (v *BookingValidator) ValidateInterval(start, end string) (interval.Interval, error) {
	var errs ValidationErrors
	if start == "" {
		errs = append(errs, ValidationError{Field: "start_time", Message: "start_time is required"})
	}
	if end == "" {
		errs = append(errs, ValidationError{Field: "end_time", Message: "end_time is required"})
	}
	if len(errs) > 0 {
		return interval.Interval{}, errs
	}
	return parseInterval(start, end)
}

func (v *BookingValidator) structErrors(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func parseInterval(rawStart, rawEnd string) (interval.Interval, error) {
	var errs ValidationErrors

	start, err := interval.ParseTimestamp(rawStart)
	if err != nil {
		errs = append(errs, timestampError("start_time", err))
	}
	end, err := interval.ParseTimestamp(rawEnd)
	if err != nil {
		errs = append(errs, timestampError("end_time", err))
	}
	if len(errs) > 0 {
		return interval.Interval{}, errs
	}

	iv, err := interval.New(start, end)
	if err != nil {
		return interval.Interval{}, ValidationErrors{{Field: "end_time", Message: "end_time must be after start_time"}}
	}
	return iv, nil
}

func timestampError(field string, err error) ValidationError {
	message := fmt.Sprintf("%s must be an RFC 3339 timestamp", field)
	if errors.Is(err, interval.ErrMissingOffset) {
		message = fmt.Sprintf("%s must include a UTC offset (e.g., 2025-01-02T10:00:00Z)", field)
	}
	return ValidationError{Field: field, Message: message}
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

func (v *BookingValidator) ValidateAvailability(req *model.AvailabilityRequest) (interval.Interval, error) {
	if err := v.structErrors(req); err != nil {
		return interval.Interval{}, err
	}
	return parseInterval(req.StartTime, req.EndTime)
}
