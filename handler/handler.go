package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"chat-relay/internal/domain"
	"chat-relay/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 1 << 20
)

type Forwarder interface {
	Forward(ctx context.Context, in usecase.ForwardInput) (usecase.ForwardOutput, error)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler is the single chat route. It serves API Gateway proxy events via
// Handle and plain HTTP via ServeHTTP.
type Handler struct {
	uc     Forwarder
	logger *slog.Logger
	cors   bool
	newID  func() string
}

type Option func(*Handler)

// WithCORS toggles the permissive CORS headers on every response.
func WithCORS(enabled bool) Option {
	return func(h *Handler) {
		h.cors = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(uc Forwarder, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: forwarder must not be nil")
	}
	h := &Handler{
		uc:     uc,
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle never returns a non-nil error: every failure, including a panic, is
// rendered as an HTTP response.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	corrID := h.correlationID(req.Headers)
	log := h.logger.With("correlation_id", corrID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling chat request", "panic", r)
			resp = h.errorResponse(corrID, usecase.NewError(usecase.ErrorInternal, "panic", usecase.MsgInternal, nil))
			err = nil
		}
	}()

	if req.HTTPMethod != http.MethodPost {
		e := usecase.NewError(usecase.ErrorMethodNotAllowed, "method_"+strings.ToLower(req.HTTPMethod), usecase.MsgMethodNotAllowed, nil)
		logError(log, e)
		resp = h.errorResponse(corrID, e)
		resp.Headers["Allow"] = http.MethodPost
		return resp, nil
	}

	in, perr := parseRequest(req)
	if perr != nil {
		logError(log, perr)
		return h.errorResponse(corrID, perr), nil
	}

	out, fwdErr := h.uc.Forward(ctx, usecase.ForwardInput{Message: in.Message})
	if fwdErr != nil {
		var e *usecase.Error
		if !errors.As(fwdErr, &e) {
			e = usecase.NewError(usecase.ErrorInternal, "unexpected_error", usecase.MsgInternal, fwdErr)
		}
		logError(log, e)
		return h.errorResponse(corrID, e), nil
	}

	return h.jsonResponse(http.StatusOK, corrID, domain.ChatReply{Reply: out.Reply}), nil
}

// ServeHTTP adapts a net/http request onto Handle.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	var resp events.APIGatewayProxyResponse
	// One byte past the cap lets parseRequest see the overflow.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		corrID := h.correlationID(headers)
		e := usecase.NewError(usecase.ErrorInternal, "read_body", usecase.MsgInternal, err)
		logError(h.logger.With("correlation_id", corrID), e)
		resp = h.errorResponse(corrID, e)
	} else {
		resp, _ = h.Handle(r.Context(), events.APIGatewayProxyRequest{
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Headers:    headers,
			Body:       string(body),
		})
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

// parseRequest extracts the message field. A body that is not JSON at all is
// an unclassified failure; a JSON body without a string message is the
// caller's fault.
func parseRequest(req events.APIGatewayProxyRequest) (domain.ChatRequest, *usecase.Error) {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return domain.ChatRequest{}, usecase.NewError(usecase.ErrorInternal, "invalid_base64_body", usecase.MsgInternal, err)
		}
		body = string(decoded)
	}
	if len(body) > maxBodyBytes {
		return domain.ChatRequest{}, usecase.NewError(usecase.ErrorInvalidInput, "body_too_large",
			fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBodyBytes), nil)
	}
	if strings.TrimSpace(body) == "" {
		return domain.ChatRequest{}, usecase.NewError(usecase.ErrorInvalidInput, "missing_message", "message is required", nil)
	}

	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return domain.ChatRequest{}, usecase.NewError(usecase.ErrorInternal, "invalid_json", usecase.MsgInternal, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.ChatRequest{}, usecase.NewError(usecase.ErrorInvalidInput, "missing_message", "message is required", nil)
	}

	switch v := obj["message"].(type) {
	case nil:
		return domain.ChatRequest{}, usecase.NewError(usecase.ErrorInvalidInput, "missing_message", "message is required", nil)
	case string:
		return domain.ChatRequest{Message: v}, nil
	default:
		return domain.ChatRequest{}, usecase.NewError(usecase.ErrorInvalidInput, "message_not_string", "message must be a string", nil)
	}
}

func statusCode(e *usecase.Error) int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case usecase.ErrorMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstreamAuth:
		return http.StatusUnauthorized
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logError(log *slog.Logger, e *usecase.Error) {
	attrs := []any{"code", e.Code, "reason", e.Reason, "status", statusCode(e)}
	if e.Err != nil {
		attrs = append(attrs, "err", e.Err)
	}
	switch e.Code {
	case usecase.ErrorMethodNotAllowed, usecase.ErrorInvalidInput:
		log.Warn("rejected chat request", attrs...)
	default:
		log.Error("chat request failed", attrs...)
	}
}

func (h *Handler) errorResponse(corrID string, e *usecase.Error) events.APIGatewayProxyResponse {
	msg := e.Message
	if msg == "" {
		msg = usecase.MsgInternal
	}
	return h.jsonResponse(statusCode(e), corrID, errorResponse{Error: msg, Code: string(e.Code)})
}

func (h *Handler) jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error","code":"INTERNAL_ERROR"}`)
	}
	headers := map[string]string{
		"Content-Type":    "application/json",
		correlationHeader: corrID,
	}
	if h.cors {
		headers["Access-Control-Allow-Origin"] = "*"
		headers["Access-Control-Allow-Methods"] = http.MethodPost
		headers["Access-Control-Allow-Headers"] = "Content-Type"
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}

func (h *Handler) correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return h.newID()
}
