package domain

import "errors"

// ErrInvalidReply reports a 2xx provider response that does not carry reply
// text where the provider contract says it should.
var ErrInvalidReply = errors.New("provider response missing reply text")

// ChatRequest is the inbound chat payload accepted by the handler.
type ChatRequest struct {
	Message string
}

// ChatReply is the body returned to the caller on success.
type ChatReply struct {
	Reply string `json:"reply"`
}
