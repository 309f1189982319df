// Package cli holds the setup shared by the hdrpcs and metashunt commands:
// configuration, logging, metrics, port discovery and exit-code handling.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moffa90/go-hdrbench/device"
	"github.com/moffa90/go-hdrbench/internal/config"
	"github.com/moffa90/go-hdrbench/internal/logging"
	"github.com/moffa90/go-hdrbench/metrics"
	"github.com/moffa90/go-hdrbench/transport"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitFailure = 2
)

// UsageError marks a malformed invocation. Execute prints the command's
// usage for it and exits with ExitUsage.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// ExactArgs is cobra.ExactArgs reporting a *UsageError.
func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// FlagError is installed with SetFlagErrorFunc so flag parse errors are
// usage errors.
func FlagError(_ *cobra.Command, err error) error {
	return &UsageError{Err: err}
}

// Execute runs root with a context cancelled on SIGINT/SIGTERM and returns
// the process exit code.
func Execute(root *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ExecuteContext(ctx, root)
}

// ExecuteContext runs root with ctx and returns the process exit code.
// Errors are written to root's error stream.
func ExecuteContext(ctx context.Context, root *cobra.Command) int {
	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}

	stderr := root.ErrOrStderr()
	var ue *UsageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "Error: %v\n\n", ue.Err)
		fmt.Fprint(stderr, cmd.UsageString())
		return ExitUsage
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitFailure
}

// OpenFunc opens the byte link described by cfg. id is the USB identity
// used for discovery when cfg names no port and carries no IDs of its own.
type OpenFunc func(cfg config.SerialConfig, id transport.USBID) (transport.ByteTransport, error)

// SerialOpener opens real serial ports, discovering them by USB ID when no
// port is configured.
func SerialOpener(log *zap.Logger) OpenFunc {
	return func(cfg config.SerialConfig, id transport.USBID) (transport.ByteTransport, error) {
		port := cfg.Port
		if port == "" {
			if cfg.VID != "" {
				id.VID = cfg.VID
			}
			if cfg.PID != "" {
				id.PID = cfg.PID
			}
			name, err := transport.Discover(id)
			if err != nil {
				return nil, err
			}
			log.Info("discovered device", zap.Stringer("usb_id", id), zap.String("port", name))
			port = name
		}

		s, err := transport.OpenSerial(transport.SerialConfig{PortName: port, BaudRate: cfg.BaudRate})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Env is the per-invocation environment built from configuration.
type Env struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// Setup loads configuration from path (see config.Load) and builds the
// logger and metrics registry.
func Setup(path string) (*Env, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	reg := metrics.NewRegistry()
	return &Env{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}, nil
}

// Sync flushes buffered log entries.
func (e *Env) Sync() {
	_ = e.Logger.Sync()
}

// SupplyOptions returns driver options for the current source.
func (e *Env) SupplyOptions() []device.Option {
	c := e.Config.Supply
	return []device.Option{
		device.WithLogger(e.Logger),
		device.WithMetrics(e.Metrics),
		device.WithTimeout(c.ResponseTimeout),
		device.WithCommandDelay(c.CommandDelay),
	}
}

// MonitorOptions returns driver options for the shunt monitor.
func (e *Env) MonitorOptions(extra ...device.Option) []device.Option {
	c := e.Config.Monitor
	opts := []device.Option{
		device.WithLogger(e.Logger),
		device.WithMetrics(e.Metrics),
		device.WithConfigTimeout(c.ConfigTimeout),
		device.WithStreamWindow(c.StreamWindow),
		device.WithConfigSettle(c.ConfigSettle),
	}
	return append(opts, extra...)
}
