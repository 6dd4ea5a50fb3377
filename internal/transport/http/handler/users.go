package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cardvault-api/internal/application/auth"
	"github.com/cardvault-api/internal/application/signup"
	"github.com/cardvault-api/internal/domain"
	"github.com/cardvault-api/internal/transport/http/middleware"
)

// UserHandler handles signup, login, PIN reset and account deletion.
type UserHandler struct {
	signupSvc signup.Service
	authSvc   auth.Service
}

func NewUserHandler(signupSvc signup.Service, authSvc auth.Service) *UserHandler {
	return &UserHandler{signupSvc: signupSvc, authSvc: authSvc}
}

// Signup is the single multi-step endpoint, discriminated by the step field
// the caller resubmits on every request.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.Step == signup.StepInitiate:
		err := h.signupSvc.Initiate(r.Context(), domain.InitiateSignupRequest{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
		})
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StepEnvelope{
			Success:     true,
			Message:     "Email and phone OTP sent successfully",
			CurrentStep: signup.StepVerify,
			NextStep:    "Verify email and phone OTP",
		})

	case req.Step == signup.StepVerify && req.Resend:
		if err := h.signupSvc.Resend(r.Context(), req.Email); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StepEnvelope{
			Success:     true,
			Message:     "OTP resent successfully",
			CurrentStep: signup.StepVerify,
			NextStep:    "Verify email and phone OTP",
		})

	case req.Step == signup.StepVerify:
		if err := h.signupSvc.Verify(r.Context(), req.Email, req.EmailOTP, req.PhoneOTP); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StepEnvelope{
			Success:     true,
			Message:     "Email and phone verified successfully",
			CurrentStep: signup.StepFinalize,
			NextStep:    "Set PIN",
		})

	case req.Step == signup.StepFinalize:
		result, err := h.signupSvc.Finalize(r.Context(), req.Email, req.PIN)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthEnvelope{
			Success: true,
			Message: "Account created successfully",
			Email:   result.Email,
			Phone:   result.Phone,
			Token:   result.Token,
		})

	default:
		writeJSON(w, http.StatusBadRequest, StepEnvelope{
			Error:       "invalid step",
			CurrentStep: signup.StepInitiate,
		})
	}
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.authSvc.Login(r.Context(), req.Identifier, req.PIN)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Success: true,
		Message: "Login successful",
		Email:   result.Email,
		Phone:   result.Phone,
		Token:   result.Token,
	})
}

// ForgetPIN is the two-step PIN reset endpoint, discriminated by step.
func (h *UserHandler) ForgetPIN(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgetPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Step {
	case auth.StepRequest:
		if err := h.authSvc.RequestPINReset(r.Context(), req.Identifier); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StepEnvelope{
			Success:     true,
			Message:     "OTP sent successfully",
			CurrentStep: auth.StepConfirm,
			NextStep:    "Verify OTP and set new PIN",
		})
	case auth.StepConfirm:
		result, err := h.authSvc.ConfirmPINReset(r.Context(), req.Identifier, req.OTP, req.NewPIN)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthEnvelope{
			Success: true,
			Message: "PIN reset successfully",
			Email:   result.Email,
			Phone:   result.Phone,
			Token:   result.Token,
		})
	default:
		writeJSON(w, http.StatusBadRequest, StepEnvelope{
			Error:       "invalid step",
			CurrentStep: auth.StepRequest,
		})
	}
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.authSvc.DeleteAccount(r.Context(), claims.UserID, claims.Email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "Account deleted successfully"})
}
