package main

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-hdrbench/device"
	"github.com/moffa90/go-hdrbench/internal/cli"
	"github.com/moffa90/go-hdrbench/protocol"
)

func stageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "s <stage>",
		Short: "Select a stage 0-7 (fixed reference mode)",
		Args:  cli.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil || stage > protocol.MaxStage {
				return cli.Usagef("stage must be an integer %d-%d, got %q", protocol.MinStage, protocol.MaxStage, args[0])
			}

			return a.withSupply(cmd, device.OpSetStage, func(ctx context.Context, s device.CurrentSupply) error {
				fixed := s.(*device.FixedReferenceSupply)
				if err := fixed.Flush(); err != nil {
					return err
				}
				if err := fixed.SetStage(ctx, uint8(stage)); err != nil {
					return err
				}
				ma, err := fixed.ReadCurrentSetting(ctx, 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "At stage %d, current setting is %.6f mA\n", stage, ma)
				return nil
			})
		},
	}
}

func currentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "c <current_mA>",
		Short: "Command a current in mA (adjustable reference mode)",
		Args:  cli.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ma, err := strconv.ParseFloat(args[0], 32)
			if err != nil || math.IsNaN(ma) || math.IsInf(ma, 0) {
				return cli.Usagef("current must be a number in mA, got %q", args[0])
			}

			return a.withSupply(cmd, device.OpSetCurrent, func(ctx context.Context, s device.CurrentSupply) error {
				adjustable := s.(*device.AdjustableReferenceSupply)
				if err := adjustable.Flush(); err != nil {
					return err
				}
				if err := adjustable.SetCurrent(ctx, float32(ma)); err != nil {
					return err
				}
				got, err := adjustable.ReadCurrentSetting(ctx, 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Current commanded %.6f mA, current setting is %.6f mA\n", ma, got)
				return nil
			})
		},
	}
}
