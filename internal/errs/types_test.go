package errs

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusErrorTransience(t *testing.T) {
	assert.True(t, NewStatusError("n8n", 503, "down").Transient)
	assert.True(t, NewStatusError("n8n", 429, "slow down").Transient)
	assert.False(t, NewStatusError("n8n", 401, "bad key").Transient)
}

func TestExternalServiceErrorUnwraps(t *testing.T) {
	err := NewExternalServiceError("groq", "Connection error: EOF", true, io.EOF)
	assert.ErrorIs(t, err, io.EOF)

	var svcErr *ExternalServiceError
	assert.True(t, errors.As(error(err), &svcErr))
	assert.Equal(t, "Connection error: EOF", err.Error())
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := NewTimeoutError("opencode oracle", 30*time.Second)
	assert.Equal(t, "Request timeout. opencode oracle did not respond within 30s.", err.Error())
}
