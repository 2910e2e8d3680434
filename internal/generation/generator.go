// Package generation talks to the external text-generation service that turns
// proposal fields into document content.
package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/deckly-app/deckly/internal/models"
)

// ErrUnavailable matches transport failures reaching the generation service.
var ErrUnavailable = errors.New("could not reach the generation service")

const defaultFailureMessage = "proposal generation failed"

// Request carries every field of one generation attempt. ProposalID and
// AccountID identify the attempt locally and are not sent to the service.
type Request struct {
	ProposalID string                 `json:"-"`
	AccountID  string                 `json:"-"`
	Title      string                 `json:"title"`
	Details    models.ProposalDetails `json:"details"`
}

// TokenUsage reports the tokens a call consumed, when the service says so.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
	TotalTokens  int64 `json:"total_tokens,omitempty"`
}

// Response is the collaborator's reply.
type Response struct {
	Success bool       `json:"success"`
	Content string     `json:"content,omitempty"`
	Error   string     `json:"error,omitempty"`
	Usage   TokenUsage `json:"usage,omitempty"`
}

// Generator synthesizes proposal content. A returned error is a transport
// failure; a logical failure is reported with Success=false.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// UnavailableError hides the transport cause behind a generic message.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string { return ErrUnavailable.Error() }

// Unwrap returns the transport cause.
func (e *UnavailableError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrUnavailable) match.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// FailedError is a failure reported by the generation service itself.
type FailedError struct {
	Message string
}

func (e *FailedError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return defaultFailureMessage
	}
	return e.Message
}

// Synthesize runs one request and folds both failure classes into errors.
// The returned content is never empty on success.
func Synthesize(ctx context.Context, g Generator, req Request) (string, error) {
	if g == nil {
		return "", &UnavailableError{Cause: errors.New("generation: no generator configured")}
	}
	resp, err := g.Generate(ctx, req)
	if err != nil {
		var failed *FailedError
		if errors.As(err, &failed) {
			return "", failed
		}
		return "", &UnavailableError{Cause: err}
	}
	if !resp.Success || strings.TrimSpace(resp.Content) == "" {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = defaultFailureMessage
		}
		return "", &FailedError{Message: msg}
	}
	return resp.Content, nil
}
