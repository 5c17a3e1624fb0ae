package gcp

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SWARM_TEST_INT", "7")
	t.Setenv("SWARM_TEST_BAD_INT", "seven")
	t.Setenv("SWARM_TEST_DURATION", "1m30s")
	t.Setenv("SWARM_TEST_EMPTY", "")

	assert.Equal(t, 7, GetEnvInt("SWARM_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("SWARM_TEST_BAD_INT", 1))
	assert.Equal(t, 3, GetEnvInt("SWARM_TEST_UNSET", 3))
	assert.Equal(t, 90*time.Second, GetEnvDuration("SWARM_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration("SWARM_TEST_EMPTY", time.Second))
	assert.Equal(t, "", GetEnv("SWARM_TEST_EMPTY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("SWARM_TEST_UNSET", "fallback"))
}

func TestIsPreconditionFailed(t *testing.T) {
	wrapped := fmt.Errorf("write: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})

	assert.True(t, isPreconditionFailed(wrapped))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isPreconditionFailed(errors.New("boom")))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/videos/u/a_b_1.mp4", PublicURL("videos", "u/a_b_1.mp4"))
}
