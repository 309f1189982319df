package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-hdrbench/calibration"
	"github.com/moffa90/go-hdrbench/device"
	"github.com/moffa90/go-hdrbench/internal/cli"
	"github.com/moffa90/go-hdrbench/protocol"
)

const defaultAttempts = 3

func parseKey(s string) (calibration.Key, error) {
	key, err := calibration.ParseKey(s)
	if err != nil {
		return "", cli.Usagef("%v (want one of %v)", err, calibration.Keys)
	}
	return key, nil
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read one calibration parameter",
		Args:  cli.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}

			return a.withMonitor(cmd, false, func(ctx context.Context, _ *cli.Env, m *device.ShuntMonitor) error {
				value, err := m.ReadParam(ctx, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %g Ohm\n", key, value)
				return nil
			})
		},
	}
}

func setCmd(a *app) *cobra.Command {
	var attempts int

	cmd := &cobra.Command{
		Use:   "set <key> <ohms>",
		Short: "Write one calibration parameter and confirm it",
		Args:  cli.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			ohms, err := strconv.ParseFloat(args[1], 64)
			if err != nil || math.IsNaN(ohms) || math.IsInf(ohms, 0) {
				return cli.Usagef("value must be a number in ohms, got %q", args[1])
			}

			return a.withMonitor(cmd, false, func(ctx context.Context, _ *cli.Env, m *device.ShuntMonitor) error {
				if err := m.ApplyCalibration(ctx, calibration.Params{key: ohms}, attempts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Setting resistor %s to %g Ohm: configuration set correctly\n", key, ohms)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&attempts, "attempts", defaultAttempts, "write/readback passes before giving up")
	return cmd
}

func dumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Read every calibration parameter into a JSON or YAML file",
		Args:  cli.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := calibration.FormatFromPath(path); err != nil {
				return &cli.UsageError{Err: err}
			}

			return a.withMonitor(cmd, false, func(ctx context.Context, _ *cli.Env, m *device.ShuntMonitor) error {
				params, err := m.ReadCalibration(ctx)
				if err != nil {
					return err
				}
				if err := calibration.Write(path, params); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d parameters to %s\n", len(params), path)
				return nil
			})
		},
	}
}

func applyCmd(a *app) *cobra.Command {
	var attempts int

	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Write a calibration file to the monitor and confirm every parameter",
		Args:  cli.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := calibration.Parse(args[0])
			if err != nil {
				return err
			}

			return a.withMonitor(cmd, false, func(ctx context.Context, _ *cli.Env, m *device.ShuntMonitor) error {
				if err := m.ApplyCalibration(ctx, params, attempts); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, key := range params.Ordered() {
					fmt.Fprintf(out, "Setting resistor %s to %g Ohm: configuration set correctly\n", key, params[key])
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&attempts, "attempts", defaultAttempts, "write/readback passes before giving up")
	return cmd
}

func streamCmd(a *app) *cobra.Command {
	var (
		duration    time.Duration
		metricsAddr string
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream measurements and print their statistics",
		Args:  cli.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration <= 0 {
				return cli.Usagef("duration must be positive, got %s", duration)
			}
			out := cmd.OutOrStdout()

			var opts []device.Option
			if !quiet {
				opts = append(opts, device.WithSampleCallback(func(s protocol.MeasurementSample) {
					fmt.Fprintf(out, "%d\t%.6f\n", s.Timestamp, s.CurrentMA)
				}))
			}

			return a.withMonitor(cmd, true, func(ctx context.Context, env *cli.Env, m *device.ShuntMonitor) error {
				addr := metricsAddr
				if addr == "" {
					addr = env.Config.Metrics.Addr
				}
				if addr != "" {
					srv, err := cli.StartMetricsServer(addr, env.Config.Metrics.Path, env.Registry, env.Logger)
					if err != nil {
						return fmt.Errorf("start metrics server: %w", err)
					}
					defer srv.Stop()
				}

				samples, err := m.StreamMeasurements(ctx, duration)
				stats := device.Summarize(samples)
				fmt.Fprintf(out, "Samples: %d  Mean: %.6f mA  Std dev: %.6f mA\n", stats.Count, stats.MeanMA, stats.StdDevMA)
				return err
			}, opts...)
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", time.Second, "how long to stream")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while streaming")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary")
	return cmd
}
