package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"unimarket/internal/metrics"
)

type Handler struct {
	Service *Service

	// EchoCodes echoes the generated code in the verify-email response.
	// Only enabled in development; it exists so local clients and load tests
	// can complete the flow without a mailbox.
	EchoCodes bool
}

func NewHandler(s *Service, echoCodes bool) *Handler {
	return &Handler{Service: s, EchoCodes: echoCodes}
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	code, err := h.Service.RequestCode(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrInvalidEmail) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to send verification code", http.StatusInternalServerError)
		return
	}

	metrics.VerificationCodesSent.Inc()

	resp := map[string]string{"message": "Verification code sent to email"}
	if h.EchoCodes {
		resp["code"] = code
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Service.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "user not found with this email", http.StatusBadRequest)
		case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrCodeExpired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "failed to verify code", http.StatusInternalServerError)
		}
		return
	}

	json.NewEncoder(w).Encode(res)
}
