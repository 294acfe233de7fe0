package handler

import (
	"net/http"

	"github.com/go-email-otp/internal/application/auth"
	"github.com/go-email-otp/internal/domain"
	"github.com/sirupsen/logrus"
)

// EmailOTPHandler serves the email OTP sign-in, verification and password reset endpoints.
type EmailOTPHandler struct {
	svc    auth.Service
	logger logrus.FieldLogger
}

func NewEmailOTPHandler(svc auth.Service, logger logrus.FieldLogger) *EmailOTPHandler {
	return &EmailOTPHandler{svc: svc, logger: logger}
}

func (h *EmailOTPHandler) SendVerificationOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.SendVerificationOTPRequest
	if !decode(w, r, &req) {
		return
	}
	purpose, err := domain.ParseOTPPurpose(req.Type)
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	if err := h.svc.SendVerificationOTP(r.Context(), req.Email, purpose); err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusEnvelope{Success: true})
}

func (h *EmailOTPHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInEmailOTPRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.SignInEmailOTP(r.Context(), req, clientMeta(r))
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, authEnvelope(res))
}

func (h *EmailOTPHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyEmailRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Status: true, User: toSafeUser(u)})
}

func (h *EmailOTPHandler) CheckVerificationOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.CheckVerificationOTPRequest
	if !decode(w, r, &req) {
		return
	}
	purpose, err := domain.ParseOTPPurpose(req.Type)
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	if err := h.svc.CheckVerificationOTP(r.Context(), req.Email, purpose, req.OTP); err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusEnvelope{Success: true})
}

func (h *EmailOTPHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SendVerificationOTP(r.Context(), req.Email, domain.PurposeForgetPassword); err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusEnvelope{Success: true})
}

func (h *EmailOTPHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusEnvelope{Success: true})
}
