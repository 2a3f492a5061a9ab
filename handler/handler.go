package handler

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"triage-bot/internal/domain"
	"triage-bot/internal/router"
)

const (
	secretHeader      = "X-Telegram-Bot-Api-Secret-Token"
	correlationHeader = "X-Correlation-Id"

	errorInvalidUpdate = "INVALID_UPDATE"
	errorUnauthorized  = "UNAUTHORIZED"
)

type MessageRouter interface {
	Handle(ctx context.Context, msg domain.InboundMessage) router.Outcome
}

// UpdateDecoder turns a Telegram update into an inbound message.
// *telegram.Client satisfies it.
type UpdateDecoder interface {
	ToInbound(update tgbotapi.Update) (domain.InboundMessage, bool)
}

// Handler is the Lambda entry point for the Telegram webhook.
type Handler struct {
	router  MessageRouter
	decoder UpdateDecoder
	secret  string
	logger  *slog.Logger
}

type webhookResponse struct {
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler builds a webhook handler. An empty secret disables the secret
// token check.
func NewHandler(r MessageRouter, d UpdateDecoder, secret string, logger *slog.Logger) (*Handler, error) {
	if r == nil {
		return nil, errors.New("handler: router must not be nil")
	}
	if d == nil {
		return nil, errors.New("handler: decoder must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{router: r, decoder: d, secret: strings.TrimSpace(secret), logger: logger}, nil
}

// Handle routes one webhook delivery. Routing failures are answered in the
// chat, so every authenticated, well-formed delivery gets a 200 and Telegram
// does not redeliver it.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	if h.secret != "" {
		got := headerValue(req.Headers, secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			logger.Warn("rejected webhook with bad secret token")
			return jsonResponse(http.StatusUnauthorized, correlationID, errorResponse{Error: errorUnauthorized}), nil
		}
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			logger.Warn("invalid base64 body", "err", err)
			return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Error: errorInvalidUpdate}), nil
		}
		body = decoded
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		logger.Warn("invalid update body", "err", err)
		return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Error: errorInvalidUpdate}), nil
	}

	msg, ok := h.decoder.ToInbound(update)
	if !ok {
		logger.Debug("update carries no message", "update_id", update.UpdateID)
		return jsonResponse(http.StatusOK, correlationID, webhookResponse{OK: true}), nil
	}

	outcome := h.router.Handle(ctx, msg)
	logger.Info("webhook handled", "update_id", update.UpdateID, "outcome", outcome)
	return jsonResponse(http.StatusOK, correlationID, webhookResponse{OK: true, Outcome: string(outcome)}), nil
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}
