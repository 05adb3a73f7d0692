package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
)

type errorBody struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Reasons  []string `json:"reasons,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}

// fail maps domain errors to responses. Unknown errors are logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr *discount.ValidationError
		iErr *discount.IneligibleError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, errorBody{
			Code: "validation_failed", Message: "invalid discount definition", Problems: vErr.Problems,
		})
	case errors.As(err, &iErr):
		writeError(w, http.StatusUnprocessableEntity, errorBody{
			Code: "ineligible", Message: "discount is not eligible for this order", Reasons: iErr.Reasons,
		})
	case errors.Is(err, discount.ErrNotFound):
		writeError(w, http.StatusNotFound, errorBody{Code: "not_found", Message: "discount not found"})
	case errors.Is(err, discount.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, errorBody{Code: "invalid_amount", Message: discount.ErrInvalidAmount.Error()})
	case errors.Is(err, discount.ErrDuplicateBottleReturn):
		writeError(w, http.StatusConflict, errorBody{
			Code: "duplicate_bottle_return", Message: discount.ErrDuplicateBottleReturn.Error(),
		})
	case errors.Is(err, discount.ErrAlreadyApplied):
		writeError(w, http.StatusConflict, errorBody{Code: "already_applied", Message: discount.ErrAlreadyApplied.Error()})
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal server error"})
	}
}

// decode reads a JSON body into dst and runs struct validation. It writes
// the 400 response itself and reports false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: decodeMessage(err)})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			h.fail(w, r, err)
			return false
		}
		problems := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
		writeError(w, http.StatusBadRequest, errorBody{
			Code: "validation_failed", Message: "invalid request", Problems: problems,
		})
		return false
	}
	return true
}

func decodeMessage(err error) string {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &maxErr):
		return "request body too large"
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return strings.TrimPrefix(err.Error(), "json: ")
	default:
		return "invalid request body: " + err.Error()
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "gt", "gte", "max":
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// newValidator reports JSON field names instead of Go field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "date must be a string")
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return errors.Errorf("date %q must be formatted as YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func toDate(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{Time: *t}
}
