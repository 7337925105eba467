package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/internal/domain"
	"chat-relay/internal/integrations/upstream"
)

type mockProvider struct {
	reply     string
	err       error
	callCount int
	gotKey    string
	gotMsg    string
	deadline  bool
}

func (m *mockProvider) Name() string { return "deepseek" }

func (m *mockProvider) Complete(ctx context.Context, apiKey, message string) (string, error) {
	m.callCount++
	m.gotKey = apiKey
	m.gotMsg = message
	_, m.deadline = ctx.Deadline()
	return m.reply, m.err
}

type mockKeys struct {
	key string
	err error
}

func (m *mockKeys) APIKey(_ context.Context) (string, error) {
	return m.key, m.err
}

func validKeys() *mockKeys { return &mockKeys{key: "sk-test"} }

func newTestService(t *testing.T, p Provider, keys KeySource, opts ...Option) *ForwardService {
	t.Helper()
	svc, err := NewForwardService(p, keys, opts...)
	require.NoError(t, err)
	return svc
}

func expectForwardError(t *testing.T, err error, code ErrorCode, reason string) *Error {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
	return usecaseErr
}

func statusErr(code int, body string) error {
	return fmt.Errorf("deepseek: %w", &upstream.StatusError{StatusCode: code, StatusText: http.StatusText(code), Body: body})
}

func TestNewForwardService_ValidatesDependencies(t *testing.T) {
	_, err := NewForwardService(nil, validKeys())
	require.Error(t, err)

	_, err = NewForwardService(&mockProvider{}, nil)
	require.Error(t, err)
}

func TestForward_HappyPath(t *testing.T) {
	p := &mockProvider{reply: "  Hello!\n"}
	svc := newTestService(t, p, validKeys())

	out, err := svc.Forward(context.Background(), ForwardInput{Message: "  hi there  "})
	require.NoError(t, err)
	require.Equal(t, "Hello!", out.Reply)
	require.Equal(t, 1, p.callCount)
	require.Equal(t, "sk-test", p.gotKey)
	require.Equal(t, "hi there", p.gotMsg)
	require.False(t, p.deadline)
}

func TestForward_ValidationErrors_NoUpstreamCall(t *testing.T) {
	p := &mockProvider{reply: "x"}
	svc := newTestService(t, p, validKeys(), WithMaxMessageLength(200))

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := svc.Forward(context.Background(), ForwardInput{Message: msg})
		e := expectForwardError(t, err, ErrorInvalidInput, "empty_message")
		require.Equal(t, "message must not be empty", e.Message)
	}

	_, err := svc.Forward(context.Background(), ForwardInput{Message: strings.Repeat("a", 201)})
	e := expectForwardError(t, err, ErrorInvalidInput, "message_too_long")
	require.Contains(t, e.Message, "200")
	require.Zero(t, p.callCount)
}

func TestForward_MaxLength_CountsCharactersAfterTrim(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	svc := newTestService(t, p, validKeys(), WithMaxMessageLength(5))

	_, err := svc.Forward(context.Background(), ForwardInput{Message: "  héllo  "})
	require.NoError(t, err)

	_, err = svc.Forward(context.Background(), ForwardInput{Message: "héllo!"})
	expectForwardError(t, err, ErrorInvalidInput, "message_too_long")
}

func TestForward_NoLimitByDefault(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	svc := newTestService(t, p, validKeys(), WithMaxMessageLength(-3))

	_, err := svc.Forward(context.Background(), ForwardInput{Message: strings.Repeat("a", 10000)})
	require.NoError(t, err)
}

func TestForward_MissingKey_NoUpstreamCall(t *testing.T) {
	p := &mockProvider{reply: "x"}
	svc := newTestService(t, p, &mockKeys{err: errors.New("DEEPSEEK_API_KEY not set")})

	_, err := svc.Forward(context.Background(), ForwardInput{Message: "hi"})
	e := expectForwardError(t, err, ErrorConfig, "missing_api_key")
	require.Equal(t, MsgConfig, e.Message)
	require.NotContains(t, e.Message, "DEEPSEEK_API_KEY")
	require.Zero(t, p.callCount)
}

func TestForward_UpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    ErrorCode
		reason  string
		message string
		status  int
	}{
		{name: "rate limited", err: statusErr(429, `{"error":{"message":"slow down"}}`), code: ErrorRateLimited, reason: "deepseek_rate_limited", message: MsgRateLimited, status: 429},
		{name: "unauthorized", err: statusErr(401, `{"error":{"message":"Authentication Fails"}}`), code: ErrorUpstreamAuth, reason: "deepseek_unauthorized", message: MsgInvalidAPIKey, status: 401},
		{name: "upstream message", err: statusErr(402, `{"error":{"message":"Insufficient Balance"}}`), code: ErrorUpstream, reason: "deepseek_error", message: "Insufficient Balance", status: 402},
		{name: "status text", err: statusErr(503, `not-json`), code: ErrorUpstream, reason: "deepseek_error", message: "Service Unavailable", status: 503},
		{name: "invalid reply", err: fmt.Errorf("deepseek: no choices: %w", domain.ErrInvalidReply), code: ErrorInvalidResponse, reason: "deepseek_malformed_response", message: MsgInvalidResponse},
		{name: "network", err: errors.New("dial tcp: connection refused"), code: ErrorInternal, reason: "deepseek_request_failed", message: MsgInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &mockProvider{err: tc.err}
			svc := newTestService(t, p, validKeys())

			_, err := svc.Forward(context.Background(), ForwardInput{Message: "hi"})
			e := expectForwardError(t, err, tc.code, tc.reason)
			require.Equal(t, tc.message, e.Message)
			require.Equal(t, tc.status, e.Status)
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, 1, p.callCount)
		})
	}
}

func TestForward_TimeoutSetsDeadline(t *testing.T) {
	p := &mockProvider{reply: "ok"}
	svc := newTestService(t, p, validKeys(), WithTimeout(time.Second))

	_, err := svc.Forward(context.Background(), ForwardInput{Message: "hi"})
	require.NoError(t, err)
	require.True(t, p.deadline)
}
