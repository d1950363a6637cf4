package handler

import (
	"context"
	"errors"
	"net/http"

	"triage-agent/internal/domain"
	"triage-agent/internal/usecase"
)

// TurnProcessor advances a consultation by one user message.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sess domain.Session, text string) (domain.Session, error)
}

type turnResponse struct {
	Success             bool                  `json:"success"`
	Session             domain.Session        `json:"session"`
	Profile             domain.PatientProfile `json:"profile"`
	Complete            bool                  `json:"complete"`
	FinalRecommendation string                `json:"finalRecommendation,omitempty"`
	Status              domain.SessionStatus  `json:"status"`
}

func newTurnResponse(sess domain.Session) turnResponse {
	return turnResponse{
		Success:             true,
		Session:             sess,
		Profile:             sess.Profile,
		Complete:            sess.Complete,
		FinalRecommendation: sess.FinalRecommendation,
		Status:              sess.Status(),
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
}

// mapError picks the HTTP status and body for a failed turn. Anything that is
// not a *usecase.Error is reported as internal without leaking its text.
func mapError(err error) (int, errorResponse) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Reason: "unexpected_error"}
	}
	status := http.StatusInternalServerError
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorSessionComplete:
		status = http.StatusConflict
	}
	return status, errorResponse{Error: string(ue.Code), Reason: ue.Reason}
}
