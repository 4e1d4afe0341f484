package joycon

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexring/ringbridge/hardware/hid"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
	"github.com/flexring/ringbridge/osc"
)

var initOrder = []msg.InitStep{
	msg.StepConfiguring,
	msg.StepMcuConfiguration0,
	msg.StepMcuConfiguration1,
	msg.StepMcuState,
	msg.Step4,
	msg.Step5,
	msg.Step6,
	msg.Step7,
}

type engineEnv struct {
	eng    *Engine
	dev    *fakeDevice
	src    *hid.MockSource
	rec    *statusRecorder
	config chan msg.Configuration
	recv   *net.UDPConn
	done   chan error
}

func newEngineEnv(t *testing.T, heartbeat time.Duration) *engineEnv {
	recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { recv.Close() })

	log := log2.NewTest(t, log2.LError)
	enc, err := osc.NewEncoder(log)
	require.NoError(t, err)
	t.Cleanup(func() { enc.Close() })

	env := &engineEnv{
		dev:    newFakeDevice(),
		src:    hid.NewMockSource(),
		rec:    newStatusRecorder(),
		config: make(chan msg.Configuration, 4),
		recv:   recv,
		done:   make(chan error, 1),
	}
	env.eng = &Engine{
		Log:          log,
		Source:       env.src,
		Encoder:      enc,
		Config:       env.config,
		Status:       env.rec.fn,
		PollInterval: 10 * time.Millisecond,
		Heartbeat:    heartbeat,
	}
	t.Cleanup(env.dev.gone)
	return env
}

func (env *engineEnv) start() {
	go func() { env.done <- env.eng.Run() }()
}

func (env *engineEnv) plug() {
	env.src.Plug(hid.Info{
		Path:      "/dev/hidraw7",
		VendorID:  VendorNintendo,
		ProductID: ProductJoyConR,
		Name:      "Joy-Con (R)",
	}, env.dev)
}

func (env *engineEnv) configure(path string) msg.Configuration {
	return msg.Configuration{
		UDPAddress: env.recv.LocalAddr().String(),
		OSCAddress: path,
		InMin:      7, InMax: 24, InCenter: 15,
		OutMin: 0.5, OutMax: 1.0, OutIdle: 0,
	}
}

func (env *engineEnv) expectInit(t *testing.T) {
	t.Helper()
	assert.Equal(t, msg.NotConnected(), env.rec.next(t))
	for _, step := range initOrder {
		assert.Equal(t, msg.Initializing(step), env.rec.next(t))
	}
}

func (env *engineEnv) readPacket(t *testing.T) (string, float32) {
	t.Helper()
	buf := make([]byte, 128)
	require.NoError(t, env.recv.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, _, err := env.recv.ReadFromUDP(buf)
	require.NoError(t, err)
	require.True(t, n >= 12)
	path := string(buf[:clen(buf[:n])])
	value := math.Float32frombits(binary.BigEndian.Uint32(buf[n-4 : n]))
	return path, value
}

func clen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

func TestEngineFlow(t *testing.T) {
	t.Parallel()

	env := newEngineEnv(t, 1*time.Hour) // heartbeat never fires here
	env.config <- env.configure("/flex")
	env.start()
	env.plug()
	env.expectInit(t)

	env.dev.feedFrame(reportTagSensor, InputReportLength, 21)
	assert.Equal(t, msg.Active(21), env.rec.next(t))
	path, value := env.readPacket(t)
	assert.Equal(t, "/flex", path)
	assert.InDelta(t, 0.5625, value, 0.0001)

	// identical reading within heartbeat window is suppressed
	env.dev.feedFrame(reportTagSensor, InputReportLength, 21)
	env.dev.feedFrame(reportTagSensor, InputReportLength, 22)
	assert.Equal(t, msg.Active(22), env.rec.next(t))
	_, value = env.readPacket(t)
	assert.InDelta(t, 0.53125, value, 0.0001)

	// wrong tag and short frame are discarded silently
	env.dev.feedFrame(0x31, InputReportLength, 23)
	env.dev.feedFrame(reportTagSensor, 39, 0)
	env.dev.feedFrame(reportTagSensor, InputReportLength, 23)
	assert.Equal(t, msg.Active(23), env.rec.next(t))
	_, value = env.readPacket(t)
	assert.InDelta(t, 0.5, value, 0.0001)

	// zero flex means no ring attached
	env.dev.feedFrame(reportTagSensor, InputReportLength, 0)
	assert.Equal(t, msg.NoRingCon(), env.rec.next(t))
	_, value = env.readPacket(t)
	assert.Equal(t, float32(0), value)

	// device gone: parting zero, Disconnected, fatal return
	env.dev.gone()
	assert.Equal(t, msg.Disconnected(), env.rec.next(t))
	_, value = env.readPacket(t)
	assert.Equal(t, float32(0), value)

	select {
	case err := <-env.done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngineHeartbeat(t *testing.T) {
	t.Parallel()

	env := newEngineEnv(t, 150*time.Millisecond)
	env.config <- env.configure("/flex")
	env.start()
	env.plug()
	env.expectInit(t)

	env.dev.feedFrame(reportTagSensor, InputReportLength, 18)
	assert.Equal(t, msg.Active(18), env.rec.next(t))
	env.readPacket(t)

	// unchanged reading after the heartbeat interval is re-emitted once
	time.Sleep(250 * time.Millisecond)
	env.dev.feedFrame(reportTagSensor, InputReportLength, 18)
	assert.Equal(t, msg.Active(18), env.rec.next(t))
	env.readPacket(t)
}

func TestEngineInitRetry(t *testing.T) {
	t.Parallel()

	env := newEngineEnv(t, 1*time.Hour)
	// three replies fail the predicate before the fourth passes
	env.dev.mangle[subRingPoll] = func(count int, reply []byte) {
		if count <= 3 {
			reply[16] = 0
		}
	}
	env.config <- env.configure("/flex")
	env.start()
	env.plug()
	env.expectInit(t)

	assert.Equal(t, 4, env.dev.sentCount(subRingPoll))
}

func TestEngineInitRejectedRetries(t *testing.T) {
	t.Parallel()

	env := newEngineEnv(t, 1*time.Hour)
	// device naks the first two sends entirely
	env.dev.mangle[subRingEnable] = func(count int, reply []byte) {
		if count <= 2 {
			reply[ackOffset] = 0
		}
	}
	env.config <- env.configure("/flex")
	env.start()
	env.plug()
	env.expectInit(t)

	assert.Equal(t, 3, env.dev.sentCount(subRingEnable))
}

func TestEngineFatalOnPlainCommandError(t *testing.T) {
	t.Parallel()

	env := newEngineEnv(t, 1*time.Hour)
	// outside Repeat stages a rejection is not retried but fatal
	env.dev.mangle[subEnableVibration] = func(count int, reply []byte) {
		reply[ackOffset] = 0
	}
	env.start()
	env.plug()

	assert.Equal(t, msg.NotConnected(), env.rec.next(t))
	assert.Equal(t, msg.Initializing(msg.StepConfiguring), env.rec.next(t))
	select {
	case err := <-env.done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	env.rec.expectNone(t, 50*time.Millisecond)
}

func TestEngineIgnoresOtherDevices(t *testing.T) {
	t.Parallel()

	env := newEngineEnv(t, 1*time.Hour)
	env.start()
	assert.Equal(t, msg.NotConnected(), env.rec.next(t))

	env.src.Plug(hid.Info{
		Path:      "/dev/hidraw3",
		VendorID:  VendorNintendo,
		ProductID: ProductProCon,
		Name:      "Pro Controller",
	}, newFakeDevice())
	env.rec.expectNone(t, 100*time.Millisecond)

	env.plug()
	assert.Equal(t, msg.Initializing(msg.StepConfiguring), env.rec.next(t))
}

func TestEngineDrainsConfigWhileWaiting(t *testing.T) {
	t.Parallel()

	env := newEngineEnv(t, 1*time.Hour)
	env.start()
	assert.Equal(t, msg.NotConnected(), env.rec.next(t))

	// two updates while no hardware is attached: poll ticks must drain
	// both, so the first packet already uses the second path
	env.config <- env.configure("/stale")
	env.config <- env.configure("/fresh")
	time.Sleep(100 * time.Millisecond)

	env.plug()
	for _, step := range initOrder {
		assert.Equal(t, msg.Initializing(step), env.rec.next(t))
	}
	env.dev.feedFrame(reportTagSensor, InputReportLength, 15)
	assert.Equal(t, msg.Active(15), env.rec.next(t))
	path, value := env.readPacket(t)
	assert.Equal(t, "/fresh", path)
	assert.Equal(t, float32(0.75), value)
}
