package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// ErrUnavailable indicates the provider could not be reached.
var ErrUnavailable = errors.New("embedding provider unavailable")

// ErrEmptyEmbedding is returned when a provider answers with no vector.
var ErrEmptyEmbedding = errors.New("provider returned empty embedding")

// WrapTransportError wraps err with ErrUnavailable when it comes from the
// network layer rather than the provider's response. Other errors are
// returned unchanged.
func WrapTransportError(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if isTransportError(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
