package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-hdrbench/metrics"
	"github.com/moffa90/go-hdrbench/protocol"
	"github.com/moffa90/go-hdrbench/transport"
)

func TestExchange_SendAndAwait(t *testing.T) {
	buf := transport.NewBuffer()
	respondTo(buf, func(cmd protocol.Command) []byte {
		return currentSetting(0.0003)
	})

	m := newTestMetrics(t)
	ex := NewExchange(buf, opts(WithMetrics(m))...)

	frame, err := ex.SendAndAwait(context.Background(), protocol.StageCommand{Stage: 7}, currentSettingResponse, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.TypeCurrentSetting), frame.Type)

	resp, err := protocol.ParseCurrentSetting(frame)
	require.NoError(t, err)
	assert.Equal(t, float32(0.0003), resp.Milliamps)

	require.Len(t, buf.Writes(), 1)
	assert.Equal(t, []byte{0xAA, 0x04, 0x01, 0x07, 0x0C}, buf.Writes()[0])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("set_stage", metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesDecoded.WithLabelValues("typed-variable")))
}

func TestExchange_Timeout(t *testing.T) {
	buf := transport.NewBuffer()
	m := newTestMetrics(t)
	ex := NewExchange(buf, opts(WithMetrics(m))...)

	start := time.Now()
	_, err := ex.SendAndAwait(context.Background(), protocol.StageCommand{Stage: 2}, currentSettingResponse, 30*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsDisconnected(err))
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	var nr *NoResponseError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, "set_stage", nr.Op)
	assert.Equal(t, ReasonTimeout, nr.Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("set_stage", metrics.ResultTimeout)))
}

func TestExchange_UnexpectedShape(t *testing.T) {
	buf := transport.NewBuffer()
	respondTo(buf, func(cmd protocol.Command) []byte {
		// A stage frame is valid on the link but is not a current setting.
		frame, _ := protocol.BuildStageCmd(1)
		return frame
	})
	ex := NewExchange(buf, fastOptions...)

	_, err := ex.SendAndAwait(context.Background(), protocol.CurrentCommand{Milliamps: 1}, currentSettingResponse, 0)

	var nr *NoResponseError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, ReasonUnexpected, nr.Reason)
	assert.Equal(t, "set_current", nr.Op)
}

func TestExchange_WriteFailure(t *testing.T) {
	buf := transport.NewBuffer()
	writeErr := errors.New("usb stall")
	buf.SetWriteError(writeErr)
	ex := NewExchange(buf, fastOptions...)

	_, err := ex.SendAndAwait(context.Background(), protocol.StageCommand{Stage: 0}, currentSettingResponse, 0)

	var nr *NoResponseError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, ReasonWriteFailed, nr.Reason)
	assert.ErrorIs(t, err, writeErr)
}

func TestExchange_ReadFailure(t *testing.T) {
	buf := transport.NewBuffer()
	buf.SetReadError(errors.New("device unplugged"))
	ex := NewExchange(buf, fastOptions...)

	_, err := ex.SendAndAwait(context.Background(), protocol.StageCommand{Stage: 0}, currentSettingResponse, 0)

	require.Error(t, err)
	assert.True(t, IsDisconnected(err))
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestExchange_ClosedLink(t *testing.T) {
	buf := transport.NewBuffer()
	ex := NewExchange(buf, fastOptions...)
	require.NoError(t, ex.Close())

	err := ex.Send(context.Background(), protocol.StageCommand{Stage: 0})
	require.Error(t, err)
	assert.True(t, IsDisconnected(err))
}

func TestExchange_Cancelled(t *testing.T) {
	buf := transport.NewBuffer()
	ex := NewExchange(buf, fastOptions...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.SendAndAwait(ctx, protocol.StageCommand{Stage: 0}, currentSettingResponse, 0)

	var nr *NoResponseError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, ReasonCancelled, nr.Reason)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.Writes(), "nothing is written once the context is done")
}

func TestExchange_ContextDeadlineBoundsWait(t *testing.T) {
	buf := transport.NewBuffer()
	ex := NewExchange(buf, fastOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := ex.SendAndAwait(ctx, protocol.StageCommand{Stage: 0}, currentSettingResponse, 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExchange_SkipsCorruptFrame(t *testing.T) {
	buf := transport.NewBuffer()
	m := newTestMetrics(t)
	ex := NewExchange(buf, opts(WithMetrics(m))...)

	bad := currentSetting(2.0)
	bad[len(bad)-1] ^= 0xFF
	buf.Feed(bad...)
	buf.Feed(currentSetting(2.5)...)

	frame, err := ex.Await(context.Background(), currentSettingResponse, 0)
	require.NoError(t, err)

	resp, err := protocol.ParseCurrentSetting(frame)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), resp.Milliamps)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksumFailures.WithLabelValues("typed-variable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("current_setting", metrics.ResultOK)))
}

func TestExchange_CommandDelay(t *testing.T) {
	buf := transport.NewBuffer()
	ex := NewExchange(buf, opts(WithCommandDelay(20*time.Millisecond))...)

	start := time.Now()
	require.NoError(t, ex.Send(context.Background(), protocol.StageCommand{Stage: 3}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestExchange_Flush(t *testing.T) {
	buf := transport.NewBuffer()
	buf.Feed(currentSetting(1)...)
	ex := NewExchange(buf, fastOptions...)

	require.NoError(t, ex.Flush())
	assert.Zero(t, buf.Pending())
}

func TestExchange_NilTransportPanics(t *testing.T) {
	assert.Panics(t, func() { NewExchange(nil) })
}

func TestOpName(t *testing.T) {
	tests := []struct {
		cmd  protocol.Command
		want string
	}{
		{protocol.StageCommand{}, "set_stage"},
		{protocol.CurrentCommand{}, "set_current"},
		{protocol.ConfigWriteCommand{}, "config_write"},
		{protocol.ConfigReadRequest{}, "config_read"},
		{protocol.CurrentSetResponse{}, "command_0x05"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, opName(tt.cmd))
		})
	}
}
