package handler

import (
	"net/http"

	"github.com/go-email-otp/internal/application/user"
	"github.com/go-email-otp/internal/domain"
	"github.com/go-email-otp/internal/transport/http/middleware"
	"github.com/sirupsen/logrus"
)

// UserHandler handles user endpoints.
type UserHandler struct {
	svc    user.Service
	logger logrus.FieldLogger
}

func NewUserHandler(svc user.Service, logger logrus.FieldLogger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req, clientMeta(r))
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, authEnvelope(res))
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(u))
}
