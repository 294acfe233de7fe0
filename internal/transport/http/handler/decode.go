package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-email-otp/internal/domain"
	"github.com/go-email-otp/internal/pkg/validate"
	"github.com/go-email-otp/internal/transport/http/middleware"
)

const maxBodyBytes = 1 << 16

// decode reads a JSON body into dst and validates it. On failure the response
// has already been written and decode returns false.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func clientMeta(r *http.Request) domain.ClientMeta {
	return domain.ClientMeta{IPAddress: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}
