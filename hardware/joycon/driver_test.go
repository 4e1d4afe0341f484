package joycon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexring/ringbridge/log2"
)

func TestDriverReportLayout(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	d := NewDriver(dev, log2.NewTest(t, log2.LError))

	_, err := d.SendSubCommand(subEnableIMU, []byte{0x01})
	require.NoError(t, err)

	dev.lk.Lock()
	report := dev.wrote[0]
	dev.lk.Unlock()
	require.Equal(t, 12, len(report))
	assert.Equal(t, byte(outputReportCommand), report[0])
	assert.Equal(t, byte(0), report[1], "first packet counter")
	assert.Equal(t, rumbleNeutral[:], report[2:10])
	assert.Equal(t, byte(subEnableIMU), report[10])
	assert.Equal(t, byte(0x01), report[11])
}

func TestDriverCounterWraps(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	d := NewDriver(dev, log2.NewTest(t, log2.LError))

	for i := 0; i < 17; i++ {
		_, err := d.SendSubCommand(subEnableIMU, []byte{0x01})
		require.NoError(t, err)
	}
	dev.lk.Lock()
	defer dev.lk.Unlock()
	assert.Equal(t, byte(15), dev.wrote[15][1])
	assert.Equal(t, byte(0), dev.wrote[16][1], "counter wraps at 16")
}

func TestDriverReadFrameZeroPads(t *testing.T) {
	t.Parallel()

	dev := newFakeDevice()
	d := NewDriver(dev, log2.NewTest(t, log2.LError))

	full := make([]byte, InputReportLength)
	for i := range full {
		full[i] = 0xff
	}
	dev.readCh <- full
	_, n, err := d.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, InputReportLength, n)

	dev.readCh <- []byte{reportTagSensor, 0xaa}
	frame, n, err := d.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, InputReportLength, len(frame), "frame keeps fixed size")
	assert.Equal(t, byte(0), frame[flexOffset], "stale bytes cleared between reads")
}
