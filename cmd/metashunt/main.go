// Command metashunt reads and writes the shunt monitor's calibration and
// streams its measurements.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-hdrbench/device"
	"github.com/moffa90/go-hdrbench/internal/cli"
	"github.com/moffa90/go-hdrbench/internal/devicesim"
	"github.com/moffa90/go-hdrbench/transport"
)

func main() {
	os.Exit(cli.Execute(newRootCmd(nil)))
}

type app struct {
	configPath string
	port       string
	timeout    time.Duration
	simulate   bool

	open cli.OpenFunc
}

func newRootCmd(open cli.OpenFunc) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "metashunt",
		Short: "Configure and read the MetaShunt V2 current monitor",
		Long: `metashunt reads and writes the shunt resistances the monitor uses to
convert readings, applies whole calibration files (JSON or YAML), and streams
current measurements.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cli.Usagef("a command is required")
			}
			return cli.Usagef("unknown command %q", args[0])
		},
	}
	root.SetFlagErrorFunc(cli.FlagError)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default hdrbench.yaml, or $HDR_CONFIG)")
	pf.StringVar(&a.port, "port", "", "serial port (default: discover by USB ID)")
	pf.DurationVar(&a.timeout, "timeout", 0, "config response timeout (default from config)")
	pf.BoolVar(&a.simulate, "simulate", false, "use a simulated shunt monitor")

	root.AddCommand(
		getCmd(a),
		setCmd(a),
		dumpCmd(a),
		applyCmd(a),
		streamCmd(a),
	)
	return root
}

// withMonitor opens the shunt monitor and runs fn. A simulated monitor only
// streams samples when streaming is set.
func (a *app) withMonitor(cmd *cobra.Command, streaming bool, fn func(context.Context, *cli.Env, *device.ShuntMonitor) error, extra ...device.Option) error {
	env, err := cli.Setup(a.configPath)
	if err != nil {
		return err
	}
	defer env.Sync()

	cfg := env.Config.Monitor
	if a.port != "" {
		cfg.Serial.Port = a.port
	}
	if a.timeout > 0 {
		cfg.ConfigTimeout = a.timeout
	}
	env.Config.Monitor = cfg

	var t transport.ByteTransport
	switch {
	case a.simulate:
		sim := devicesim.NewShuntMonitor(devicesim.WithLogger(env.Logger), devicesim.WithNoise(0.0005))
		sim.SetSource(func() float64 { return 1 })
		if streaming {
			sim.Start(cmd.Context())
		}
		t = sim
	case a.open != nil:
		t, err = a.open(cfg.Serial, transport.ShuntMonitorUSBID)
	default:
		t, err = cli.SerialOpener(env.Logger)(cfg.Serial, transport.ShuntMonitorUSBID)
	}
	if err != nil {
		return fmt.Errorf("connect to shunt monitor: %w", err)
	}

	monitor := device.NewShuntMonitor(t, env.MonitorOptions(extra...)...)
	defer monitor.Close()

	return fn(cmd.Context(), env, monitor)
}
