// Package handler exposes the consultation service over API Gateway (Lambda)
// and plain HTTP (chi).
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"triage-agent/internal/domain"
	"triage-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// turnRequest carries the whole session because the Lambda transport keeps no
// server-side state. A missing session starts a new consultation.
type turnRequest struct {
	Message string          `json:"message"`
	Session *domain.Session `json:"session,omitempty"`
}

type Handler struct {
	uc  TurnProcessor
	now func() time.Time
}

func NewHandler(uc TurnProcessor) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, now: time.Now}, nil
}

// Handle processes one API Gateway proxy request. Failures are always
// rendered as responses; the returned error is reserved for the runtime.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := slog.With("correlation_id", corrID)

	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return h.fail(corrID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}), nil
		}
		body = string(raw)
	}

	var in turnRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return h.fail(corrID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}), nil
	}

	sess := domain.NewSession(uuid.NewString(), h.now())
	if in.Session != nil {
		sess = *in.Session
		if sess.ID == "" {
			sess.ID = uuid.NewString()
		}
	}

	out, err := h.uc.ProcessTurn(ctx, sess, in.Message)
	if err != nil {
		logger.Warn("turn failed", "session", sess.ID, "err", err)
		return h.fail(corrID, err), nil
	}
	return respond(corrID, http.StatusOK, newTurnResponse(out)), nil
}

func (h *Handler) fail(corrID string, err error) events.APIGatewayProxyResponse {
	status, body := mapError(err)
	return respond(corrID, status, body)
}

func respond(corrID string, status int, v any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"success":false,"error":"INTERNAL_ERROR","reason":"encode_error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}

// correlationID reuses the caller's header (any casing) or mints a new one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}
