package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	fixerrors "fixpoint/internal/errors"
)

// mapHTTPError classifies a non-2xx provider response. Rate limits, quota
// exhaustion and authentication failures are task-fatal: the engine aborts
// instead of burning iterations on a request that cannot succeed. Server-side
// errors stay transient so the retry layer can recover them.
func mapHTTPError(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}
	base := fmt.Errorf("HTTP %d: %s", statusCode, message)
	lower := strings.ToLower(message)

	switch {
	case statusCode == http.StatusTooManyRequests:
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") {
			return fixerrors.NewFatalError(fixerrors.FatalQuotaExceeded, base, statusCode)
		}
		return fixerrors.NewFatalError(fixerrors.FatalRateLimit, base, statusCode)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fixerrors.NewFatalError(fixerrors.FatalUnauthorized, base, statusCode)
	case strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "quota exceeded"):
		return fixerrors.NewFatalError(fixerrors.FatalQuotaExceeded, base, statusCode)
	case statusCode >= 500 || statusCode == http.StatusRequestTimeout:
		return fixerrors.NewTransientError(base, fmt.Sprintf("Provider error (%d). Retrying request.", statusCode))
	default:
		return fixerrors.NewPermanentError(base, fmt.Sprintf("Request rejected (%d). Check the request parameters.", statusCode))
	}
}

// wrapRequestError classifies transport-level failures before the response
// arrived. Context cancellation passes through untouched.
func wrapRequestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fixerrors.NewTransientError(err, "Network error reaching the inference provider. Retrying request.")
}
