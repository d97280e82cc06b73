package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "salesdash/internal/errors"
	api "salesdash/pkg/contracts/api/v1"
)

// QueryValidator binds and validates dashboard query parameters using the
// struct tags on api.DashboardQuery.
type QueryValidator struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewQueryValidator creates a new query validator
func NewQueryValidator(logger *slog.Logger) *QueryValidator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()

	// Report query parameter names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &QueryValidator{
		validator: v,
		logger:    logger.With(slog.String("component", "query_validator")),
	}
}

// ParseDashboardQuery reads start, end, states, metric and format from the
// URL. states is a comma separated list; states present but empty selects
// no state. The returned error is an *apierrors.APIError.
func (v *QueryValidator) ParseDashboardQuery(r *http.Request) (api.DashboardQuery, error) {
	values := r.URL.Query()

	q := api.DashboardQuery{
		Start:  strings.TrimSpace(values.Get("start")),
		End:    strings.TrimSpace(values.Get("end")),
		Metric: strings.TrimSpace(values.Get("metric")),
		Format: strings.ToLower(strings.TrimSpace(values.Get("format"))),
	}

	if values.Has("states") {
		q.StatesSet = true
		q.States = []string{}
		for _, raw := range values["states"] {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					q.States = append(q.States, s)
				}
			}
		}
	}

	if err := v.ValidateStruct(q); err != nil {
		v.logger.DebugContext(r.Context(), "query rejected",
			slog.String("query", r.URL.RawQuery),
			slog.String("error", err.Error()))
		return q, err
	}
	return q, nil
}

// ValidateStruct validates a struct and returns validation errors
func (v *QueryValidator) ValidateStruct(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidParameter("query", err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fieldName(fe),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// fieldName strips the index validator adds to slice elements (states[0]).
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i > 0 {
		return name[:i]
	}
	return name
}

// formatValidationError formats validation error messages
func formatValidationError(fe validator.FieldError) string {
	field := fieldName(fe)
	param := fe.Param()

	switch fe.Tag() {
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted YYYY-MM-DD", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "len", "alpha", "uppercase":
		return fmt.Sprintf("%s must contain two-letter upper-case state codes, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
