package sdk

import "os"

const (
	// EnvAddr names the daemon address, e.g. https://ops.local:7002.
	EnvAddr = "ROBOTOPS_ADDR"
	// EnvToken carries a token from a previous login.
	EnvToken = "ROBOTOPS_TOKEN"
	// EnvInsecure set to "true" accepts self-signed certificates.
	EnvInsecure = "ROBOTOPS_INSECURE"

	DefaultAddr = "localhost:7002"
)

// FromEnv builds a client from ROBOTOPS_* variables. Explicit opts are
// applied last.
func FromEnv(opts ...Option) (*Client, error) {
	addr := os.Getenv(EnvAddr)
	if addr == "" {
		addr = DefaultAddr
	}
	var envOpts []Option
	if token := os.Getenv(EnvToken); token != "" {
		envOpts = append(envOpts, WithToken(token))
	}
	if os.Getenv(EnvInsecure) == "true" {
		envOpts = append(envOpts, WithInsecureTLS())
	}
	return Connect(addr, append(envOpts, opts...)...)
}
