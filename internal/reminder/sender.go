package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"getitdone/internal/push"
)

// RetryConfig holds per-token retry settings for push delivery.
type RetryConfig struct {
	// MaxAttempts is the number of delivery attempts per token.
	MaxAttempts int
	// BaseBackoff is the delay before the second attempt; it doubles each
	// attempt after that (1s, 2s, 4s with the defaults).
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the documented defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
	}
}

// Sender fans one notification out to all active devices of a user.
type Sender struct {
	tokens  TokenStore
	pusher  Pusher
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *zerolog.Logger
}

// NewSender creates a fan-out sender. limiter may be nil to disable
// provider-side rate limiting.
func NewSender(tokens TokenStore, pusher Pusher, limiter *rate.Limiter, retry RetryConfig, logger *zerolog.Logger) *Sender {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.BaseBackoff <= 0 {
		retry.BaseBackoff = 1 * time.Second
	}
	return &Sender{
		tokens:  tokens,
		pusher:  pusher,
		limiter: limiter,
		retry:   retry,
		logger:  logger,
	}
}

// SendToUser delivers one notification to every active token the user has.
// A user with no active tokens yields zero counts and no error. Tokens are
// handled independently: one token exhausting its retries never aborts the
// rest.
func (s *Sender) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) (FanOutResult, error) {
	var result FanOutResult

	tokens, err := s.tokens.ActiveTokens(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("fetch active tokens")
		return result, err
	}
	if len(tokens) == 0 {
		s.logger.Debug().Str("user_id", userID).Msg("no active tokens")
		return result, nil
	}

	for _, token := range tokens {
		outcome := s.sendToToken(ctx, token.Token, token.DeviceID, title, body, data)
		result.Add(outcome)
		if ctx.Err() != nil {
			break
		}
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Int("invalid_tokens", result.InvalidTokens).
		Msg("fan-out completed")
	return result, nil
}

// sendToToken attempts delivery to a single token with exponential backoff.
// A provider-reported dead token is deactivated and not retried.
func (s *Sender) sendToToken(ctx context.Context, token, deviceID, title, body string, data map[string]string) FanOutResult {
	var result FanOutResult

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				result.Failed++
				return result
			}
		}

		err := s.pusher.Send(ctx, token, title, body, data)
		if err == nil {
			if touchErr := s.tokens.TouchLastUsed(ctx, deviceID); touchErr != nil {
				s.logger.Error().Err(touchErr).Str("device_id", deviceID).Msg("update last_used")
			}
			result.Sent++
			return result
		}

		if push.IsPermanent(err) {
			s.logger.Warn().Err(err).Str("device_id", deviceID).Msg("token reported invalid, deactivating")
			if deactErr := s.tokens.DeactivateByToken(ctx, token); deactErr != nil {
				s.logger.Error().Err(deactErr).Str("device_id", deviceID).Msg("deactivate token")
			}
			tokensInvalidated.Inc()
			result.Failed++
			result.InvalidTokens++
			return result
		}

		if attempt < s.retry.MaxAttempts-1 {
			backoff := s.retry.BaseBackoff << attempt
			s.logger.Info().
				Str("device_id", deviceID).
				Int("attempt", attempt+1).
				Int("max_attempts", s.retry.MaxAttempts).
				Dur("backoff", backoff).
				Err(err).
				Msg("retrying push send")
			sendRetries.Inc()

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				result.Failed++
				return result
			}
		} else {
			s.logger.Error().Err(err).
				Str("device_id", deviceID).
				Int("attempts", s.retry.MaxAttempts).
				Msg("push delivery exhausted retries")
		}
	}

	result.Failed++
	return result
}
