package openai

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/openai/openai-go"

	"github.com/davidbz/codeassist/internal/domain"
)

const codeInsufficientQuota = "insufficient_quota"

// classify maps an SDK or network error onto the domain error taxonomy.
// Context cancellation is returned as is.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return domain.NewCompletionError(kindForStatus(apiErr.StatusCode, apiErr.Code), apiErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.NewCompletionError(domain.KindTransient, 0, err)
	}

	return domain.NewCompletionError(domain.KindFatal, 0, err)
}

// kindForStatus classifies by HTTP status and provider error code.
func kindForStatus(status int, code string) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests && code == codeInsufficientQuota:
		return domain.KindFatal
	case status == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusConflict:
		return domain.KindTransient
	case status >= http.StatusInternalServerError:
		return domain.KindTransient
	default:
		return domain.KindFatal
	}
}
