package handler

import (
	"errors"
	"net/http"

	"github.com/go-email-otp/internal/domain"
	"github.com/go-email-otp/internal/pkg/validate"
	"github.com/sirupsen/logrus"
)

// Machine-readable codes for OTP failures.
const (
	codeInvalidOTP      = "INVALID_OTP"
	codeOTPExpired      = "OTP_EXPIRED"
	codeTooManyAttempts = "TOO_MANY_ATTEMPTS"
)

// httpError maps domain errors to status codes. Unmapped errors are logged
// and reported as 500 without their message.
func httpError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, domain.ErrTooManyAttempts):
		writeJSON(w, http.StatusForbidden, MessageEnvelope{Error: "too many attempts", ErrorCode: codeTooManyAttempts})
	case errors.Is(err, domain.ErrOTPExpired):
		writeJSON(w, http.StatusUnauthorized, MessageEnvelope{Error: "otp expired", ErrorCode: codeOTPExpired})
	case errors.Is(err, domain.ErrInvalidOTP):
		writeJSON(w, http.StatusUnauthorized, MessageEnvelope{Error: "invalid otp", ErrorCode: codeInvalidOTP})
	case validate.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
