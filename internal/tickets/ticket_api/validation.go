package ticket_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/models"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("checkinevent", func(fl validator.FieldLevel) bool {
		return models.IsAllowedEvent(fl.Field().String())
	})
	return v
}

type ToggleRequest struct {
	TicketNumber string `json:"ticketNumber" validate:"required,max=64"`
	Event        string `json:"event" validate:"required,checkinevent"`
	Status       *bool  `json:"status" validate:"required"`
	Checker      string `json:"checker" validate:"max=120"`
}

type BulkCheckinRequest struct {
	TicketNumbers []string `json:"ticketNumbers" validate:"required,min=1,max=1000,dive,max=64"`
	Checker       string   `json:"checker" validate:"max=120"`
}

type ScanRequest struct {
	EncryptedQR string `json:"encrypted_qr" validate:"required,max=4096"`
	Event       string `json:"event" validate:"required,checkinevent"`
	Scanner     string `json:"scanner" validate:"max=120"`
}

// decodeAndValidate reads a strict JSON body into dst and validates it.
// Every failure is an apperr.ErrValidation.
func decodeAndValidate(ctx context.Context, w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	if dec.More() {
		return apperr.Validation("request body must contain a single JSON object")
	}
	return validationError(validate.StructCtx(ctx, dst))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) || len(vErrors) == 0 {
		return apperr.Validation("%v", err)
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = "field is required"
	case "max":
		msg = "field exceeds maximum length"
	case "min":
		msg = "field is below minimum length"
	case "checkinevent":
		msg = fmt.Sprintf("event %q is not allowed", ve.Value())
	default:
		msg = "invalid value"
	}
	return apperr.Validation("%s: %s", msg, ve.Field())
}
