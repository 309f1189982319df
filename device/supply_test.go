package device

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-hdrbench/transport"
)

func unity() float64 { return 1 }

func TestParseSupplyMode(t *testing.T) {
	tests := []struct {
		in      string
		want    SupplyMode
		wantErr bool
	}{
		{"fixed", FixedReference, false},
		{"Fixed-Reference", FixedReference, false},
		{"fixed_reference", FixedReference, false},
		{"adjustable", AdjustableReference, false},
		{"ADJUSTABLE REFERENCE", AdjustableReference, false},
		{"variable", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSupplyMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupplyMode_String(t *testing.T) {
	assert.Equal(t, "fixed reference", FixedReference.String())
	assert.Equal(t, "adjustable reference", AdjustableReference.String())
	assert.Equal(t, "mode(9)", SupplyMode(9).String())
}

func TestNominalStageCurrent(t *testing.T) {
	ma, err := NominalStageCurrent(0)
	require.NoError(t, err)
	assert.Equal(t, 389.0, ma)

	ma, err = NominalStageCurrent(7)
	require.NoError(t, err)
	assert.Equal(t, 0.0003, ma)

	_, err = NominalStageCurrent(8)
	assert.ErrorContains(t, err, "stage must be 0-7, got 8")
}

func TestFixedReferenceSupply_SetStage(t *testing.T) {
	buf := transport.NewBuffer()
	supply := NewFixedReferenceSupply(buf, fastOptions...)

	require.NoError(t, supply.SetStage(context.Background(), 7))
	require.Len(t, buf.Writes(), 1)
	assert.Equal(t, []byte{0xAA, 0x04, 0x01, 0x07, 0x0C}, buf.Writes()[0])
}

func TestFixedReferenceSupply_SetStageOutOfRange(t *testing.T) {
	buf := transport.NewBuffer()
	supply := NewFixedReferenceSupply(buf, fastOptions...)

	err := supply.SetStage(context.Background(), 8)
	assert.ErrorContains(t, err, "stage must be 0-7, got 8")
	assert.Empty(t, buf.Writes())

	_, err = supply.SetStageConfirmed(context.Background(), 9, 0.05, 5)
	assert.Error(t, err)
	assert.Empty(t, buf.Writes())
}

func TestFixedReferenceSupply_SetStageConfirmed(t *testing.T) {
	buf := transport.NewBuffer()
	echoSupply(buf, unity)
	supply := NewFixedReferenceSupply(buf, fastOptions...)

	ma, err := supply.SetStageConfirmed(context.Background(), 2, 0.05, 5)
	require.NoError(t, err)
	assert.Equal(t, float32(30), ma)
	assert.Len(t, buf.Writes(), 1)
}

func TestFixedReferenceSupply_SetStageConfirmedRetries(t *testing.T) {
	buf := transport.NewBuffer()

	// The first two echoes are 10% high, then the stage settles.
	var calls atomic.Int32
	echoSupply(buf, func() float64 {
		if calls.Add(1) <= 2 {
			return 1.10
		}
		return 1.01
	})
	supply := NewFixedReferenceSupply(buf, fastOptions...)

	ma, err := supply.SetStageConfirmed(context.Background(), 3, 0.05, 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.03, float64(ma), 1e-5)
	assert.Len(t, buf.Writes(), 3)
}

func TestFixedReferenceSupply_SetStageConfirmedGivesUp(t *testing.T) {
	buf := transport.NewBuffer()
	echoSupply(buf, func() float64 { return 0.5 })
	supply := NewFixedReferenceSupply(buf, fastOptions...)

	ma, err := supply.SetStageConfirmed(context.Background(), 1, 0.05, 5)

	var se *SettingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Attempts)
	assert.Equal(t, 234.0, se.WantMA)
	assert.InDelta(t, 117.0, se.GotMA, 1e-4)
	assert.NoError(t, se.Err)
	assert.InDelta(t, 117.0, float64(ma), 1e-4)
	assert.Len(t, buf.Writes(), 5)
}

func TestAdjustableReferenceSupply_SetCurrent(t *testing.T) {
	buf := transport.NewBuffer()
	supply := NewAdjustableReferenceSupply(buf, fastOptions...)

	require.NoError(t, supply.SetCurrent(context.Background(), 1.0))
	require.Len(t, buf.Writes(), 1)
	assert.Equal(t, []byte{0xAA, 0x00, 0x04, 0x00, 0x00, 0x80, 0x3F, 0xC3}, buf.Writes()[0])
}

func TestAdjustableReferenceSupply_SetCurrentRejectsNaN(t *testing.T) {
	buf := transport.NewBuffer()
	supply := NewAdjustableReferenceSupply(buf, fastOptions...)

	assert.Error(t, supply.SetCurrent(context.Background(), float32(math.NaN())))
	assert.Error(t, supply.SetCurrent(context.Background(), float32(math.Inf(1))))
	assert.Empty(t, buf.Writes())
}

func TestAdjustableReferenceSupply_SetCurrentConfirmed(t *testing.T) {
	buf := transport.NewBuffer()
	echoSupply(buf, func() float64 { return 1.005 })
	supply := NewAdjustableReferenceSupply(buf, fastOptions...)

	ma, err := supply.SetCurrentConfirmed(context.Background(), 12.5, 0.01, 3)
	require.NoError(t, err)
	assert.InDelta(t, 12.5625, float64(ma), 1e-4)
}

func TestAdjustableReferenceSupply_SetCurrentConfirmedNoEcho(t *testing.T) {
	buf := transport.NewBuffer()
	supply := NewAdjustableReferenceSupply(buf, fastOptions...)

	_, err := supply.SetCurrentConfirmed(context.Background(), 1.5, 0.01, 3)

	var se *SettingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Attempts)
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.True(t, IsTimeout(se.Err))
	assert.Len(t, buf.Writes(), 3)
}

func TestSupply_ConfirmStopsOnDisconnect(t *testing.T) {
	buf := transport.NewBuffer()
	require.NoError(t, buf.Close())
	supply := NewAdjustableReferenceSupply(buf, fastOptions...)

	_, err := supply.SetCurrentConfirmed(context.Background(), 1.5, 0.01, 3)
	require.Error(t, err)
	assert.True(t, IsDisconnected(err))

	var se *SettingError
	assert.False(t, errors.As(err, &se), "a lost link is not a tolerance failure")
}

func TestSupply_ReadCurrentSetting(t *testing.T) {
	buf := transport.NewBuffer()
	buf.Feed(currentSetting(2.5)...)
	supply := NewAdjustableReferenceSupply(buf, fastOptions...)

	ma, err := supply.ReadCurrentSetting(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), ma)
}

func TestCheckMode(t *testing.T) {
	fixed := NewFixedReferenceSupply(transport.NewBuffer())
	adjustable := NewAdjustableReferenceSupply(transport.NewBuffer())

	assert.NoError(t, CheckMode(fixed, OpSetStage))
	assert.NoError(t, CheckMode(adjustable, OpSetCurrent))

	err := CheckMode(fixed, OpSetCurrent)
	var me *ModeError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, FixedReference, me.Mode)
	assert.Contains(t, err.Error(), "select a stage")

	err = CheckMode(adjustable, OpSetStage)
	require.ErrorAs(t, err, &me)
	assert.Equal(t, AdjustableReference, me.Mode)
	assert.Contains(t, err.Error(), "command current directly")
}

func TestNewCurrentSupply(t *testing.T) {
	s, err := NewCurrentSupply(transport.NewBuffer(), FixedReference)
	require.NoError(t, err)
	assert.IsType(t, &FixedReferenceSupply{}, s)
	assert.Equal(t, FixedReference, s.Mode())

	s, err = NewCurrentSupply(transport.NewBuffer(), AdjustableReference)
	require.NoError(t, err)
	assert.IsType(t, &AdjustableReferenceSupply{}, s)

	_, err = NewCurrentSupply(transport.NewBuffer(), SupplyMode(0))
	assert.Error(t, err)
}

func TestWithinRelative(t *testing.T) {
	tests := []struct {
		name           string
		want, got, tol float64
		ok             bool
	}{
		{"exact", 3, 3, 0.05, true},
		{"inside", 3, 3.1, 0.05, true},
		{"boundary is outside", 100, 105, 0.05, false},
		{"outside", 3, 3.3, 0.05, false},
		{"zero target inside", 0, 0.001, 0.01, true},
		{"zero target outside", 0, 0.5, 0.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, withinRelative(tt.want, tt.got, tt.tol))
		})
	}
}
