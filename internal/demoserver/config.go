package demoserver

// Config holds configuration for the demo server.
type Config struct {
	// ListenAddr is the address the server listens on.
	ListenAddr string

	// APIKey, when non-empty, is required on every /policies request, sent
	// either as X-API-Key or as "Authorization: ApiKey <key>".
	APIKey string

	// Seed preloads the sample policies.
	Seed bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8000",
		Seed:       true,
	}
}
