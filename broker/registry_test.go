package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbroker/majordomo/mdp"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRegistry() *registry {
	return newRegistry(6 * time.Second)
}

func TestRegistryReadyThenPresent(t *testing.T) {
	r := testRegistry()

	wd := r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)

	assert.Equal(t, mdp.WrapID(mdp.ClassZMQ, []byte("w1")), wd.id)
	assert.Equal(t, t0.Add(6*time.Second), wd.expiresAt)
	assert.Contains(t, r.workers, wd.id)
	assert.Equal(t, 1, r.getService("echo").workers.Len())
}

func TestRegistryHeartbeatExtendsExpiry(t *testing.T) {
	r := testRegistry()

	wd := r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)

	later := t0.Add(4 * time.Second)
	require.True(t, r.heartbeat(wd.id, later))

	assert.Equal(t, later, wd.lastHBReceived)
	assert.Equal(t, later.Add(6*time.Second), wd.expiresAt)

	// Without the heartbeat the worker would be gone by now
	r.sweepExpired(t0.Add(8 * time.Second))
	assert.Contains(t, r.workers, wd.id)
}

func TestRegistryHeartbeatUnknown(t *testing.T) {
	r := testRegistry()

	assert.False(t, r.heartbeat(mdp.WrapID(mdp.ClassZMQ, []byte("ghost")), t0))
	assert.Empty(t, r.workers)
	assert.Empty(t, r.services)
}

func TestSweepRemovesExpiredEverywhere(t *testing.T) {
	r := testRegistry()

	wd := r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)
	live := r.registerReady(mdp.ClassZMQ, []byte("w2"), "echo", t0.Add(5*time.Second))

	expired := r.sweepExpired(t0.Add(7 * time.Second))

	require.Len(t, expired, 1)
	assert.Equal(t, wd.id, expired[0].id)
	assert.NotContains(t, r.workers, wd.id)
	assert.Contains(t, r.workers, live.id)

	svc := r.getService("echo")
	assert.Equal(t, 1, svc.workers.Len())
	id, _ := svc.workers.Peek()
	assert.Equal(t, live.id, id)
}

func TestSweepAlreadyExpiredBoundary(t *testing.T) {
	r := testRegistry()

	// expires_at == now counts as dead
	wd := r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)
	expired := r.sweepExpired(t0.Add(6 * time.Second))

	require.Len(t, expired, 1)
	assert.NotContains(t, r.workers, wd.id)
	for _, svc := range r.services {
		assert.Equal(t, 0, svc.workers.Len())
	}
}

func TestSweepCollectsEmptyServices(t *testing.T) {
	r := testRegistry()

	r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)
	require.Contains(t, r.services, "echo")

	r.sweepExpired(t0.Add(10 * time.Second))

	// Worker expired, no requests pending: entry is gone and gets recreated
	// lazily on the next use.
	assert.NotContains(t, r.services, "echo")
	assert.NotNil(t, r.getService("echo"))
}

func TestSweepKeepsServiceWithPendingRequests(t *testing.T) {
	r := testRegistry()

	svc := r.getService("echo")
	svc.requests.Push(clientRequest{client: []byte("c1"), body: []byte("hi"), receivedAt: t0})

	r.sweepExpired(t0.Add(time.Hour))

	assert.Contains(t, r.services, "echo")
	assert.Equal(t, 1, r.getService("echo").requests.Len())
}

func TestReRegisterMovesWorker(t *testing.T) {
	r := testRegistry()

	r.registerReady(mdp.ClassZMQ, []byte("w1"), "alpha", t0)
	r.registerReady(mdp.ClassZMQ, []byte("w1"), "beta", t0.Add(time.Second))

	// A worker identity appears in at most one availability queue
	assert.Equal(t, 0, r.getService("alpha").workers.Len())
	assert.Equal(t, 1, r.getService("beta").workers.Len())
	assert.Len(t, r.workers, 1)

	wd := r.workers[mdp.WrapID(mdp.ClassZMQ, []byte("w1"))]
	require.NotNil(t, wd)
	assert.Equal(t, "beta", wd.service)
}

func TestReRegisterSameServiceNoDuplicate(t *testing.T) {
	r := testRegistry()

	r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)
	r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0.Add(time.Second))

	assert.Equal(t, 1, r.getService("echo").workers.Len())
	assert.Len(t, r.workers, 1)
}

func TestTakeModelsBusy(t *testing.T) {
	r := testRegistry()

	wd := r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)

	taken := r.take(wd.id)
	require.Same(t, wd, taken)
	assert.NotContains(t, r.workers, wd.id)

	// Absent means absent: take is idempotent
	assert.Nil(t, r.take(wd.id))
}

func TestDisconnectRemovesEverywhere(t *testing.T) {
	r := testRegistry()

	wd := r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)

	require.True(t, r.disconnect(wd.id))
	assert.NotContains(t, r.workers, wd.id)
	assert.Equal(t, 0, r.getService("echo").workers.Len())

	assert.False(t, r.disconnect(wd.id))
}

func TestClassesDoNotCollide(t *testing.T) {
	r := testRegistry()

	// Same raw address, different classes: two distinct workers
	r.registerReady(mdp.ClassZMQ, []byte("w1"), "echo", t0)
	r.registerReady(mdp.ClassLocal, []byte("w1"), "echo", t0)

	assert.Len(t, r.workers, 2)
	assert.Equal(t, 2, r.getService("echo").workers.Len())
}
