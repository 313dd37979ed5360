package session

import "net/http"

// State is the externally visible phase of the manager.
type State int

const (
	Unauthenticated State = iota
	Restoring
	Authenticated
	// Refreshing is Authenticated with a refresh call in flight.
	Refreshing
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Header holds the request headers for an authenticated call. It is empty
// when no valid access token could be obtained.
type Header map[string]string

// Apply copies h into dst.
func (h Header) Apply(dst http.Header) {
	for k, v := range h {
		dst.Set(k, v)
	}
}
