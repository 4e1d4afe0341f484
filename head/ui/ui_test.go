package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"

	"github.com/flexring/ringbridge/head/agent"
	"github.com/flexring/ringbridge/log2"
	"github.com/flexring/ringbridge/msg"
)

func TestRenderStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not-connected", renderStatus(msg.NotConnected()))
	assert.Equal(t, "no-ringcon", renderStatus(msg.NoRingCon()))
	assert.Equal(t, "initializing 3/8 (mcu-config-1)", renderStatus(msg.Initializing(msg.StepMcuConfiguration1)))
	assert.Equal(t, "connection lost, restarting", renderStatus(msg.Disconnected()))
	assert.Contains(t, renderStatus(msg.Active(255)), "flex=255")
}

func TestFlexBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[........]", flexBar(0, 8))
	assert.Equal(t, "[########]", flexBar(255, 8))
	assert.Equal(t, "[####....]", flexBar(128, 8))
}

func TestRunSubmitsThenClosesOnStop(t *testing.T) {
	t.Parallel()

	a := alive.NewAlive()
	u := &UI{Log: log2.NewTest(t, log2.LDebug), Alive: a}
	sink := make(chan msg.Configuration, agent.ConfigQueueDepth)
	watch := agent.NewStatusWatch(msg.NotConnected())
	conf := msg.Configuration{UDPAddress: "127.0.0.1:9000", OSCAddress: "/flex"}

	done := make(chan struct{})
	go func() {
		u.Run(conf, sink, watch)
		close(done)
	}()

	select {
	case got := <-sink:
		assert.Equal(t, conf, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for initial config")
	}

	watch.Set(msg.Active(21))
	a.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
	_, open := <-sink
	require.False(t, open, "sink must be closed after stop")
}
