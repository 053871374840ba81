package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var (
	ErrNoRoute             = errors.New("no route found")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrUnsupportedCategory = errors.New("unsupported category")
	ErrTimeout             = errors.New("provider timed out")
	ErrNoValidQuotes       = errors.New("no valid quotes")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrUserRejected        = errors.New("user rejected the request")
)

// UpstreamError wraps a transport or parsing failure of a provider API
type UpstreamError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream builds an *UpstreamError
func Upstream(provider, op string, err error) error {
	return &UpstreamError{Provider: provider, Op: op, Err: err}
}

// SubmissionError wraps a failure to submit a transaction
type SubmissionError struct {
	Provider string
	Step     string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Step, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Submission builds a *SubmissionError, passing through wallet and rejection errors
func Submission(provider, step string, err error) error {
	if errors.Is(err, ErrUserRejected) || errors.Is(err, ErrWalletNotConnected) {
		return err
	}
	return &SubmissionError{Provider: provider, Step: step, Err: err}
}

// RoundFailure is the only error surfaced when a whole aggregation round fails
type RoundFailure struct {
	Reason error
	Errs   map[string]error // per provider
}

func (e *RoundFailure) Error() string {
	if len(e.Errs) == 0 {
		return e.Reason.Error()
	}
	parts := make([]string, 0, len(e.Errs))
	for name, err := range e.Errs {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	return fmt.Sprintf("%v (%s)", e.Reason, strings.Join(parts, "; "))
}

func (e *RoundFailure) Unwrap() error {
	return e.Reason
}

func unsupported(provider string, from, to types.ChainID) error {
	return fmt.Errorf("%s: %s -> %s: %w", provider, from, to, ErrUnsupportedChain)
}

// Reason classifies err into a short label for logs and metrics
func Reason(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoRoute):
		return "no_route"
	case errors.Is(err, ErrUnsupportedChain), errors.Is(err, ErrUnsupportedCategory):
		return "unsupported"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &upstream):
		return "upstream"
	default:
		return "error"
	}
}
