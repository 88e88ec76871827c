package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlayDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, PlayDelay(true, DefaultRemoteLatency))
	assert.Zero(t, PlayDelay(false, DefaultRemoteLatency))
	assert.Zero(t, PlayDelay(true, -time.Second))
}

func TestDeferredPlayAt(t *testing.T) {
	assert.Equal(t, epoch.Add(2*time.Second), DeferredPlayAt(epoch, true, DefaultRemoteLatency))
	assert.Equal(t, epoch, DeferredPlayAt(epoch, false, DefaultRemoteLatency))
}
