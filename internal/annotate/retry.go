package annotate

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Annotation posts are treated as transient failures: three attempts with
// exponential backoff from a one-second base.
const (
	retryAttempts  = 3
	retryBaseDelay = time.Second
)

// RetrySink wraps a sink with bounded exponential retry. If retries exhaust,
// the last error is returned and the caller decides the fallback channel.
type RetrySink struct {
	Inner  Sink
	Logger zerolog.Logger

	// BaseDelay overrides the initial backoff interval; zero keeps the
	// one-second default. Tests shrink it.
	BaseDelay time.Duration
}

// Annotate posts through the inner sink, retrying transient failures.
func (s RetrySink) Annotate(ctx context.Context, style Style, content, contextID string, appendMode bool) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryBaseDelay
	if s.BaseDelay > 0 {
		policy.InitialInterval = s.BaseDelay
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := s.Inner.Annotate(ctx, style, content, contextID, appendMode)
		if err != nil {
			s.Logger.Warn().Int("attempt", attempt).Err(err).Msg("annotation post failed")
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, retryAttempts-1), ctx))
}
