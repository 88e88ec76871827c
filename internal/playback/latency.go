package playback

import "time"

const (
	// DefaultRemoteLatency is the simulated start delay of the remote path.
	DefaultRemoteLatency = 2000 * time.Millisecond

	// DefaultStallTimeout is how long buffering must persist before a stall
	// is confirmed.
	DefaultStallTimeout = 5000 * time.Millisecond
)

// PlayDelay returns how long to wait between "can begin playback" and
// issuing play. Local paths play immediately.
func PlayDelay(remote bool, latency time.Duration) time.Duration {
	if !remote || latency < 0 {
		return 0
	}
	return latency
}

// DeferredPlayAt returns the instant play should be issued for a ready event
// observed at now.
func DeferredPlayAt(now time.Time, remote bool, latency time.Duration) time.Time {
	return now.Add(PlayDelay(remote, latency))
}
