package web

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalagent/internal/metrics"
	"rentalagent/internal/system"
)

const (
	testDelay    = 20 * time.Millisecond
	testInterval = 40 * time.Millisecond
)

func newTestDashboard(sampler UsageSampler) (*Dashboard, *staticProbe) {
	probe := &staticProbe{}
	cache := system.NewInfoCache(probe, discardLogger())
	opts := DashboardOptions{StartupDelay: testDelay, Interval: testInterval}
	return NewDashboard(cache, sampler, opts, metrics.New(), discardLogger()), probe
}

func TestDashboardStreamOrder(t *testing.T) {
	sampler := &fakeSampler{}
	dash, probe := newTestDashboard(sampler)
	client := newRecordingClient("sid-1")

	start := time.Now()
	dash.Connect(context.Background(), client)
	defer dash.Disconnect("sid-1", "test")

	require.Eventually(t, func() bool {
		return client.count(EventUsageStats) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	events := client.snapshot()
	require.Equal(t, EventSystemInfo, events[0].event)
	assert.GreaterOrEqual(t, events[0].at.Sub(start), testDelay, "system_info waits for the startup delay")
	assert.Equal(t, 1, client.count(EventSystemInfo), "system_info is sent once")

	info, ok := events[0].payload.(system.SystemInfo)
	require.True(t, ok)
	assert.Equal(t, "Intel Xeon", info.CPU)

	var usage []emitted
	for _, e := range events[1:] {
		require.Equal(t, EventUsageStats, e.event)
		usage = append(usage, e)
	}
	for i := 1; i < len(usage); i++ {
		assert.GreaterOrEqual(t, usage[i].at.Sub(usage[i-1].at), testInterval-5*time.Millisecond)
	}
	assert.Equal(t, int32(1), probe.calls.Load())
}

func TestDashboardSharesCacheAcrossClients(t *testing.T) {
	dash, probe := newTestDashboard(&fakeSampler{})
	a, b := newRecordingClient("a"), newRecordingClient("b")

	dash.Connect(context.Background(), a)
	dash.Connect(context.Background(), b)
	defer dash.Close()

	require.Eventually(t, func() bool {
		return a.count(EventSystemInfo) == 1 && b.count(EventSystemInfo) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), probe.calls.Load())
	assert.Equal(t, 2, dash.Connected())
}

func TestDashboardNoEventsAfterDisconnect(t *testing.T) {
	dash, _ := newTestDashboard(&fakeSampler{})
	client := newRecordingClient("sid-2")

	dash.Connect(context.Background(), client)
	require.Eventually(t, func() bool {
		return client.count(EventUsageStats) >= 1
	}, time.Second, 5*time.Millisecond)

	dash.Disconnect("sid-2", "transport close")
	sent := len(client.snapshot())

	time.Sleep(3 * testInterval)
	assert.Len(t, client.snapshot(), sent)
	assert.Equal(t, 0, dash.Connected())
}

func TestDashboardDisconnectBeforeStartupDelay(t *testing.T) {
	sampler := &fakeSampler{}
	dash, _ := newTestDashboard(sampler)
	client := newRecordingClient("sid-3")

	dash.Connect(context.Background(), client)
	dash.Disconnect("sid-3", "client namespace disconnect")

	time.Sleep(testDelay + 2*testInterval)
	assert.Empty(t, client.snapshot())
	assert.Zero(t, sampler.calls.Load())
}

func TestDashboardSamplerErrorEndsStream(t *testing.T) {
	sampler := &fakeSampler{err: errors.New("disk vanished")}
	dash, _ := newTestDashboard(sampler)
	client := newRecordingClient("sid-4")

	dash.Connect(context.Background(), client)
	defer dash.Disconnect("sid-4", "test")

	require.Eventually(t, func() bool {
		return sampler.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testInterval)

	assert.Equal(t, int32(1), sampler.calls.Load(), "no retry")
	assert.Equal(t, 1, client.count(EventSystemInfo))
	assert.Zero(t, client.count(EventUsageStats))
	assert.Equal(t, 1, dash.Connected(), "the connection itself stays open")
}

func TestDashboardSamplerPanicIsContained(t *testing.T) {
	sampler := &fakeSampler{panic: true}
	dash, _ := newTestDashboard(sampler)
	client := newRecordingClient("sid-5")

	dash.Connect(context.Background(), client)
	defer dash.Disconnect("sid-5", "test")

	require.Eventually(t, func() bool {
		return sampler.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testInterval)

	assert.Equal(t, int32(1), sampler.calls.Load())
	assert.Zero(t, client.count(EventUsageStats))
}

func TestDashboardContextCancelStopsStream(t *testing.T) {
	sampler := &fakeSampler{}
	dash, _ := newTestDashboard(sampler)
	client := newRecordingClient("sid-6")

	ctx, cancel := context.WithCancel(context.Background())
	dash.Connect(ctx, client)
	require.Eventually(t, func() bool {
		return client.count(EventUsageStats) >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(testInterval)
	calls := sampler.calls.Load()
	time.Sleep(3 * testInterval)

	assert.Equal(t, calls, sampler.calls.Load())
}

func TestDashboardSendSystemInfo(t *testing.T) {
	dash, _ := newTestDashboard(&fakeSampler{})
	client := newRecordingClient("sid-7")

	dash.SendSystemInfo(context.Background(), client)

	events := client.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventSystemInfo, events[0].event)
}

func TestDashboardDisconnectUnknown(t *testing.T) {
	dash, _ := newTestDashboard(&fakeSampler{})

	dash.Disconnect("never-connected", "test")

	assert.Zero(t, dash.Connected())
}
