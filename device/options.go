package device

import (
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-hdrbench/metrics"
)

// Config holds the driver configuration.
type Config struct {
	// Logger receives structured driver logs (optional, defaults to a no-op logger)
	Logger *zap.Logger

	// Metrics records frame and exchange counters (optional)
	Metrics *metrics.Metrics

	// ResponseTimeout bounds the wait for a current source reply
	ResponseTimeout time.Duration

	// ConfigTimeout bounds the wait for a shunt monitor config response
	ConfigTimeout time.Duration

	// StreamWindow is the longest single decode while streaming samples
	StreamWindow time.Duration

	// CommandDelay is an optional pause after every write
	CommandDelay time.Duration

	// RetryDelay is the pause before each confirmed-setting attempt
	RetryDelay time.Duration

	// ConfigSettle is the pause before each config write and read
	ConfigSettle time.Duration

	// SampleCallback is called for every streamed sample (optional)
	SampleCallback SampleCallback
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:          zap.NewNop(),
		ResponseTimeout: 500 * time.Millisecond,
		ConfigTimeout:   150 * time.Millisecond,
		StreamWindow:    100 * time.Millisecond,
		RetryDelay:      100 * time.Millisecond,
		ConfigSettle:    100 * time.Millisecond,
	}
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// Option is a functional option for configuring a driver.
type Option func(*Config)

// WithLogger sets the zap logger for driver operations.
//
// Example:
//
//	logger, _ := zap.NewDevelopment()
//	supply := device.NewFixedReferenceSupply(port, device.WithLogger(logger))
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the Prometheus counters the driver records into.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTimeout sets the current source response timeout.
//
// Example:
//
//	supply := device.NewAdjustableReferenceSupply(port, device.WithTimeout(time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ResponseTimeout = timeout
		}
	}
}

// WithConfigTimeout sets the shunt monitor config response timeout.
func WithConfigTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ConfigTimeout = timeout
		}
	}
}

// WithStreamWindow sets the decode window used while streaming samples.
func WithStreamWindow(window time.Duration) Option {
	return func(c *Config) {
		if window > 0 {
			c.StreamWindow = window
		}
	}
}

// WithCommandDelay sets a pause applied after every command write.
func WithCommandDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.CommandDelay = delay
		}
	}
}

// WithRetryDelay sets the pause before each confirmed-setting attempt.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.RetryDelay = delay
		}
	}
}

// WithConfigSettle sets the pause before each config write and read.
// The monitor firmware drops requests that arrive back to back.
func WithConfigSettle(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.ConfigSettle = delay
		}
	}
}

// WithSampleCallback sets a function called for every streamed sample.
//
// Example:
//
//	monitor := device.NewShuntMonitor(port,
//	    device.WithSampleCallback(func(s protocol.MeasurementSample) {
//	        fmt.Printf("%d %.6f mA\n", s.Timestamp, s.CurrentMA)
//	    }),
//	)
func WithSampleCallback(callback SampleCallback) Option {
	return func(c *Config) {
		c.SampleCallback = callback
	}
}
