package redis

const (
	// KeyPrefix namespaces every key written by ideaboard.
	KeyPrefix = "ideaboard:"
	// KeySignals is the bounded list of notification events, newest first.
	KeySignals = KeyPrefix + "signals"
)

// SignalsKey returns the key of the signal list.
func SignalsKey() string {
	return KeySignals
}
