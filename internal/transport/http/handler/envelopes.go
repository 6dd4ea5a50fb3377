package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cardvault-api/internal/domain"
)

// StepEnvelope wraps multi-step flow responses. CurrentStep tells the caller
// where to resume; on success it points at the next step.
type StepEnvelope struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	CurrentStep int    `json:"currentStep,omitempty"`
	NextStep    string `json:"nextStep,omitempty"`
}

// AuthEnvelope wraps responses that issue a session token.
type AuthEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Token   string `json:"token,omitempty"`
}

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CardEnvelope wraps single-card responses.
type CardEnvelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Card    *domain.CardView `json:"card,omitempty"`
}

// CardListEnvelope wraps card list responses.
type CardListEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Count   int               `json:"count"`
	Cards   []domain.CardView `json:"cards"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
