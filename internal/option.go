package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	stdout io.Writer
	stdin  io.Reader
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where terminal output goes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithInput sets where "convert" reads HTML from. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(a *application) {
		a.stdin = r
	}
}
