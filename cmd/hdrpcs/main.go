// Command hdrpcs drives the HDR precision current source from the command
// line.
//
//	hdrpcs h                 print usage
//	hdrpcs s <stage>         select a stage (fixed reference mode)
//	hdrpcs c <current_mA>    command a current (adjustable reference mode)
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

// app holds the persistent flags and the link opener.
type app struct {
	configPath string
	port       string
	mode       string
	timeout    time.Duration
	simulate   bool

	// open replaces serial discovery when set
	open cli.OpenFunc
}

func newRootCmd(open cli.OpenFunc) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "hdrpcs",
		Short: "Control the HDR precision current source",
		Long: `hdrpcs selects a stage or commands a current on the HDR precision
current source and prints the setting the source reports back.

Stages are only available on sources built with the fixed reference;
currents are only available with the adjustable reference.`,
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
	pf.StringVar(&a.mode, "mode", "", "reference mode: fixed or adjustable (default: implied by the command)")
	pf.DurationVar(&a.timeout, "timeout", 0, "response timeout (default from config)")
	pf.BoolVar(&a.simulate, "simulate", false, "use a simulated current source")

	root.AddCommand(
		usageCmd(),
		stageCmd(a),
		currentCmd(a),
	)
	return root
}

func usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "h",
		Short: "Print usage",
		Args:  cli.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			root := cmd.Root()
			root.SetOut(cmd.OutOrStdout())
			_ = root.Usage()
		},
	}
}

// withSupply resolves the reference mode, rejects op if the mode cannot
// perform it, then opens the source and runs fn.
func (a *app) withSupply(cmd *cobra.Command, op device.Operation, fn func(context.Context, device.CurrentSupply) error) error {
	env, err := cli.Setup(a.configPath)
	if err != nil {
		return err
	}
	defer env.Sync()

	cfg := env.Config.Supply
	if a.port != "" {
		cfg.Serial.Port = a.port
	}
	if a.timeout > 0 {
		cfg.ResponseTimeout = a.timeout
	}
	env.Config.Supply = cfg

	mode := op.RequiredMode()
	name := a.mode
	if name == "" {
		name = cfg.Mode
	}
	if name != "" {
		if mode, err = device.ParseSupplyMode(name); err != nil {
			return &cli.UsageError{Err: err}
		}
	}
	if err := mode.Check(op); err != nil {
		return &cli.UsageError{Err: err}
	}

	var t transport.ByteTransport
	switch {
	case a.simulate:
		t = devicesim.NewCurrentSource(mode, devicesim.WithLogger(env.Logger))
	case a.open != nil:
		t, err = a.open(cfg.Serial, transport.CurrentSourceUSBID)
	default:
		t, err = cli.SerialOpener(env.Logger)(cfg.Serial, transport.CurrentSourceUSBID)
	}
	if err != nil {
		return fmt.Errorf("connect to current source: %w", err)
	}

	supply, err := device.NewCurrentSupply(t, mode, env.SupplyOptions()...)
	if err != nil {
		_ = t.Close()
		return err
	}
	defer supply.Close()

	return fn(cmd.Context(), supply)
}
