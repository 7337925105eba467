package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"chat-relay/internal/domain"
)

// Provider is one upstream chat API. Implementations send message as the only
// user turn and return the raw reply text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, apiKey, message string) (string, error)
}

type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type upstreamMessager interface {
	UpstreamMessage() string
}

type ForwardService struct {
	provider         Provider
	keys             KeySource
	maxMessageLength int
	timeout          time.Duration
}

type ForwardInput struct {
	Message string
}

type ForwardOutput struct {
	Reply string
}

type Option func(*ForwardService)

// WithMaxMessageLength caps the trimmed message in characters. n <= 0
// disables the check.
func WithMaxMessageLength(n int) Option {
	return func(s *ForwardService) {
		if n < 0 {
			n = 0
		}
		s.maxMessageLength = n
	}
}

// WithTimeout bounds the provider call. Zero leaves the caller's context as is.
func WithTimeout(d time.Duration) Option {
	return func(s *ForwardService) {
		s.timeout = d
	}
}

func NewForwardService(p Provider, keys KeySource, opts ...Option) (*ForwardService, error) {
	if p == nil {
		return nil, errors.New("usecase: provider must not be nil")
	}
	if keys == nil {
		return nil, errors.New("usecase: key source must not be nil")
	}
	s := &ForwardService{provider: p, keys: keys}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Forward validates the message, makes exactly one provider call and
// classifies any failure as *Error.
func (s *ForwardService) Forward(ctx context.Context, in ForwardInput) (ForwardOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ForwardOutput{}, NewError(ErrorInvalidInput, "empty_message", "message must not be empty", nil)
	}
	if s.maxMessageLength > 0 && utf8.RuneCountInString(message) > s.maxMessageLength {
		return ForwardOutput{}, NewError(ErrorInvalidInput, "message_too_long",
			fmt.Sprintf("message exceeds maximum length of %d characters", s.maxMessageLength), nil)
	}

	apiKey, err := s.keys.APIKey(ctx)
	if err != nil {
		return ForwardOutput{}, NewError(ErrorConfig, "missing_api_key", MsgConfig, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.provider.Complete(ctx, apiKey, message)
	if err != nil {
		return ForwardOutput{}, s.classify(err)
	}
	return ForwardOutput{Reply: strings.TrimSpace(reply)}, nil
}

func (s *ForwardService) classify(err error) *Error {
	name := s.provider.Name()

	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		status := statusErr.HTTPStatusCode()
		switch status {
		case http.StatusTooManyRequests:
			e := NewError(ErrorRateLimited, name+"_rate_limited", MsgRateLimited, err)
			e.Status = status
			return e
		case http.StatusUnauthorized:
			e := NewError(ErrorUpstreamAuth, name+"_unauthorized", MsgInvalidAPIKey, err)
			e.Status = status
			return e
		}
		msg := http.StatusText(status)
		var messager upstreamMessager
		if errors.As(err, &messager) {
			if m := messager.UpstreamMessage(); m != "" {
				msg = m
			}
		}
		if msg == "" {
			msg = MsgInternal
		}
		e := NewError(ErrorUpstream, name+"_error", msg, err)
		e.Status = status
		return e
	}

	if errors.Is(err, domain.ErrInvalidReply) {
		return NewError(ErrorInvalidResponse, name+"_malformed_response", MsgInvalidResponse, err)
	}
	return NewError(ErrorInternal, name+"_request_failed", MsgInternal, err)
}
