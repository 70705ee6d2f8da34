package llms

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorTransient, KindOf(transientErr("timeout", nil)))
	assert.Equal(t, ErrorPermanent, KindOf(permanentErr("bad key", nil)))
	assert.Equal(t, ErrorContextOverflow, KindOf(overflowErr("too big")))
	assert.Equal(t, ErrorCancelled, KindOf(cancelledErr(errors.New("deadline"))))

	// Unknown errors are treated as recoverable.
	assert.Equal(t, ErrorTransient, KindOf(errors.New("connection reset")))

	// Wrapped gateway errors keep their kind.
	wrapped := fmt.Errorf("agent run: %w", permanentErr("quota", nil))
	assert.Equal(t, ErrorPermanent, KindOf(wrapped))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(permanentErr("bad key", nil)))
	assert.True(t, IsPermanent(overflowErr("too big")))
	assert.False(t, IsPermanent(transientErr("timeout", nil)))
	assert.False(t, IsPermanent(cancelledErr(nil)))
}

func TestGatewayErrorUnwrap(t *testing.T) {
	inner := errors.New("tls handshake failed")
	err := transientErr("request failed", inner)
	assert.True(t, errors.Is(err, inner))
	assert.Contains(t, err.Error(), "llm transient")
	assert.Contains(t, err.Error(), "tls handshake failed")
}
