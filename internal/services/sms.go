package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/observability"
	"go.uber.org/zap"
)

// SMSSender is the outbound SMS capability: send one message, fail possibly
// retryably. The gateway's transport protocol is not this engine's concern.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// SMSError is a transport failure flagged with whether the gateway considers
// it retryable
type SMSError struct {
	Retryable bool
	Cause     error
}

func (e *SMSError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("retryable sms failure: %v", e.Cause)
	}
	return fmt.Sprintf("sms failure: %v", e.Cause)
}

func (e *SMSError) Unwrap() error {
	return e.Cause
}

// HTTPSMSSender dispatches messages through the configured HTTP SMS gateway
type HTTPSMSSender struct {
	gatewayURL string
	token      string
	client     *http.Client
	logger     *logging.SafeLogger
}

// NewHTTPSMSSender creates a gateway client from the application config
func NewHTTPSMSSender(logger *logging.SafeLogger) *HTTPSMSSender {
	return &HTTPSMSSender{
		gatewayURL: config.AppConfig.SMSGatewayURL,
		token:      config.AppConfig.SMSGatewayToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Send dispatches one SMS. Gateway overload and server-side errors are
// flagged retryable; anything else is a hard failure.
func (s *HTTPSMSSender) Send(ctx context.Context, phoneNumber, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      phoneNumber,
		"message": message,
	})
	if err != nil {
		return &SMSError{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return &SMSError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		// Network errors may clear up; let the caller's retry budget decide.
		return &SMSError{Retryable: true, Cause: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		s.logger.Warn("sms gateway returned retryable status",
			zap.Int("status", resp.StatusCode),
			zap.String("phone_number", observability.MaskPhone(phoneNumber)))
		return &SMSError{Retryable: true, Cause: fmt.Errorf("gateway status %d", resp.StatusCode)}
	default:
		s.logger.Error("sms gateway rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("phone_number", observability.MaskPhone(phoneNumber)))
		return &SMSError{Cause: fmt.Errorf("gateway status %d", resp.StatusCode)}
	}
}
