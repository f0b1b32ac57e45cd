package webclient

import "time"

type Client string

const (
	ClientNetHTTP Client = "nethttp"
)

// Config is the minimal set of options required for constructing a WebClient.
// It is filled from app.Config without creating an import cycle.
type Config struct {
	Client Client

	// Timeout bounds a whole round trip; zero means the 30s default.
	Timeout time.Duration

	// MaxBodyBytes caps a buffered response body; zero means 10 MiB.
	MaxBodyBytes int64

	// UserAgent is sent when the request has none.
	UserAgent string
}
