/*
Package broker implements a standalone broker for the ZeroMQ Majordomo
Protocol 0.1 (http://rfc.zeromq.org/spec:7).

The broker pairs clients issuing named-service requests with a dynamic pool
of workers. Workers announce themselves with READY, are kept alive through
heartbeats, and are forgotten on DISCONNECT or when their TTL runs out.
Requests and workers are matched per service in strict FIFO order; assigning
a request removes the worker from the pool, so a worker serves at most one
request before it has to register again.

A single event loop drives everything; all registry and queue mutations
happen under one lock, so the broker can also be fed from multiple
goroutines through handleMessage without further coordination.
*/
package broker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zbroker/majordomo/log"
	"github.com/zbroker/majordomo/mdp"
)

// LocalDeliveryFunc hands a request to an in-process worker instead of the
// wire transport. The host system supplies the implementation; the broker
// only selects it by worker class.
type LocalDeliveryFunc func(workerAddr, clientAddr, body []byte) error

/*
Broker routes requests between clients and workers. Configure it with the
setter functions below before calling Serve(), otherwise they might be
ignored.
*/
type Broker struct {
	address   string
	transport Transport

	pollInterval  time.Duration
	heartbeat     time.Duration
	heartbeatMult int
	logDetails    bool

	localDelivery LocalDeliveryFunc

	// Held upon every operation touching the registry, the service queues or
	// the transport
	lock     sync.Mutex
	registry *registry
	metrics  *brokerMetrics

	keepRunning atomic.Bool
}

/*
NewBroker creates a broker that will bind the given transport to address.
Defaults: 100ms poll interval, 3s heartbeat interval, TTL of heartbeat x 2.
*/
func NewBroker(address string, transport Transport) *Broker {
	b := &Broker{
		address:       address,
		transport:     transport,
		pollInterval:  100 * time.Millisecond,
		heartbeat:     3 * time.Second,
		heartbeatMult: 2,
		metrics:       newBrokerMetrics(),
	}

	b.registry = newRegistry(b.ttl())
	b.keepRunning.Store(true)

	return b
}

// How long to wait in each poll cycle. Heartbeat emission and expiry
// sweeping share this cadence.
func (b *Broker) SetPollInterval(d time.Duration) {
	b.pollInterval = d
}

// How often to send a heartbeat to each live worker.
func (b *Broker) SetHeartbeat(d time.Duration) {
	b.heartbeat = d
	b.registry.ttl = b.ttl()
}

/*
Multiplier applied to the heartbeat interval to compute the liveness TTL. A
worker whose heartbeat is overdue by this factor is presumed dead; the slack
covers missed or delayed heartbeats.
*/
func (b *Broker) SetHeartbeatMult(n int) {
	b.heartbeatMult = n
	b.registry.ttl = b.ttl()
}

// Log every message passing through the broker (at debug level).
func (b *Broker) SetLogDetails(on bool) {
	b.logDetails = on
}

// Install the delivery function for in-process workers. Without it, requests
// dispatched to a local-class worker are logged and dropped.
func (b *Broker) SetLocalDelivery(fn LocalDeliveryFunc) {
	b.localDelivery = fn
}

func (b *Broker) ttl() time.Duration {
	return b.heartbeat * time.Duration(b.heartbeatMult)
}

/*
RegisterLocalWorker announces an in-process worker for a service, as a wire
worker's READY would. Requests assigned to it are handed to the installed
LocalDeliveryFunc. The host must re-register it after every delivery and
keep it fresh via RefreshLocalWorker, exactly like a wire worker's
READY/HEARTBEAT cycle.
*/
func (b *Broker) RegisterLocalWorker(name, serviceName string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.registerReady(mdp.ClassLocal, []byte(name), serviceName, time.Now())
}

// RefreshLocalWorker extends an in-process worker's TTL, like a heartbeat.
func (b *Broker) RefreshLocalWorker(name string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	id := mdp.WrapID(mdp.ClassLocal, []byte(name))
	if !b.registry.heartbeat(id, time.Now()) {
		log.MDP_log(log.LOGLEVEL_WARNINGS, "No worker found for HB", id)
	}
}

// Collectors returns the broker's metrics for registration with a
// prometheus registry.
func (b *Broker) Collectors() []prometheus.Collector {
	return b.metrics.collectors()
}

/*
Serve binds the transport and runs the event loop until Stop() is called.
Only a bind failure is fatal and returned before the loop starts; every
other error is logged and the loop continues. On exit the broker performs a
final sweep and sends a disconnect notice to every remaining live worker.
*/
func (b *Broker) Serve() error {
	// Bind first to make sure we can actually start before logging the fact
	if err := b.transport.Bind(b.address); err != nil {
		log.MDP_log(log.LOGLEVEL_ERRORS, "Error when binding broker transport:", err.Error())
		return err
	}

	log.MDP_log(log.LOGLEVEL_INFO, "Starting MDP 0.1 broker at", b.address)

	for b.keepRunning.Load() {
		ready, err := b.transport.Poll(b.pollInterval)

		if err != nil {
			log.MDP_log(log.LOGLEVEL_ERRORS, "Polling error in broker loop:", err.Error())
			continue
		}

		// Periodically send heartbeats to all known workers; this also runs
		// the expiry sweep, even on idle cycles.
		b.lock.Lock()
		b.sendHeartbeats(time.Now())
		b.lock.Unlock()

		if ready {
			frames, err := b.transport.Recv()

			if err != nil {
				log.MDP_log(log.LOGLEVEL_ERRORS, "Error when receiving from transport:", err.Error())
				continue
			}

			if b.logDetails && log.IsLoggingEnabled(log.LOGLEVEL_DEBUG) {
				log.MDP_log(log.LOGLEVEL_DEBUG, "Received msg at", b.address, frames)
			}

			b.handleMessage(frames)
		}
	}

	b.shutdown()
	return nil
}

// Stop makes Serve return after its current cycle, at most one poll interval
// later.
func (b *Broker) Stop() {
	b.keepRunning.Store(false)
}

// Close the transport. The broker may not be used after calling Close().
func (b *Broker) Close() {
	b.transport.Close()
}
