package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/zbroker/majordomo/log"
	"github.com/zbroker/majordomo/mdp"
)

/*
This file has the internal event handlers, the actual broker; broker.go
remains uncluttered and with only public functions.
*/

// handleMessage decodes one inbound message and routes it to the client or
// worker handler. Parse failures never stop the loop: unknown worker
// commands are dropped with a warning, anything else (unknown originator,
// malformed framing) is rejected with an error log.
func (b *Broker) handleMessage(frames [][]byte) {
	msg, err := mdp.Parse(frames)

	if err != nil {
		if errors.Is(err, mdp.ErrUnknownCommand) {
			log.MDP_log(log.LOGLEVEL_WARNINGS, "Dropped worker message:", err.Error())
		} else {
			log.MDP_log(log.LOGLEVEL_ERRORS, "Rejected message:", err.Error())
		}
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	now := time.Now()

	switch m := msg.(type) {
	case mdp.ClientRequest:
		b.submitClientRequest(m, now)
	case mdp.WorkerReady:
		b.registerReady(mdp.ClassZMQ, m.Sender, m.Service, now)
	case mdp.WorkerReply:
		b.forwardReply(m)
	case mdp.WorkerHeartbeat:
		b.recordHeartbeat(m.Sender, now)
	case mdp.WorkerDisconnect:
		b.disconnectWorker(m.Sender)
	}
}

// submitClientRequest queues a request and immediately tries to hand out all
// pending requests for that service. Caller holds the lock.
func (b *Broker) submitClientRequest(m mdp.ClientRequest, now time.Time) {
	req := clientRequest{client: m.Sender, body: m.Body, receivedAt: now, token: log.GetLogToken()}
	svc := b.registry.getService(m.Service)
	svc.requests.Push(req)

	b.metrics.requestsReceived.Inc()

	if log.IsLoggingEnabled(log.LOGLEVEL_DEBUG) {
		log.MDP_log(log.LOGLEVEL_DEBUG, fmt.Sprintf("[%s] Queued request for %s", req.token, m.Service))
	}

	b.dispatch(m.Service, now)
}

// registerReady records a worker as available for a service and triggers
// dispatch for it. Caller holds the lock.
func (b *Broker) registerReady(class mdp.WorkerClass, address []byte, serviceName string, now time.Time) {
	wd := b.registry.registerReady(class, address, serviceName, now)

	log.MDP_log(log.LOGLEVEL_INFO, "Added worker", wd.id, "for service", serviceName)

	b.dispatch(serviceName, now)
}

// forwardReply wraps a worker reply in the client envelope and sends it to
// the client's transport address. Caller holds the lock.
func (b *Broker) forwardReply(m mdp.WorkerReply) {
	// The worker left the registry when the request was assigned to it, so
	// its declared service is usually unknown here; the envelope carries an
	// empty name then.
	serviceName := ""
	if wd, ok := b.registry.workers[mdp.WrapID(mdp.ClassZMQ, m.Sender)]; ok {
		serviceName = wd.service
	}

	if err := b.transport.Send(mdp.EncodeClientReply(m.Client, serviceName, m.Body)); err != nil {
		log.MDP_log(log.LOGLEVEL_ERRORS, "Error when forwarding reply to client:", err.Error())
		return
	}

	b.metrics.repliesForwarded.Inc()
}

// recordHeartbeat refreshes a worker's expiry. A heartbeat for an identity
// we have never seen (or have already expired) is not an error. Caller holds
// the lock.
func (b *Broker) recordHeartbeat(address []byte, now time.Time) {
	id := mdp.WrapID(mdp.ClassZMQ, address)

	if !b.registry.heartbeat(id, now) {
		log.MDP_log(log.LOGLEVEL_WARNINGS, "No worker found for HB", id)
	}
}

// disconnectWorker removes a worker immediately, with the same effect as the
// expiry sweep. Caller holds the lock.
func (b *Broker) disconnectWorker(address []byte) {
	id := mdp.WrapID(mdp.ClassZMQ, address)

	if !b.registry.disconnect(id) {
		log.MDP_log(log.LOGLEVEL_WARNINGS, "DISCONNECT from unknown worker", id)
		return
	}

	log.MDP_log(log.LOGLEVEL_INFO, "Removed worker", id)
	b.metrics.liveWorkers.Set(float64(len(b.registry.workers)))
}

// sendHeartbeats cleans up expired workers and sends a heartbeat to every
// remaining one whose last heartbeat is due. Caller holds the lock.
func (b *Broker) sendHeartbeats(now time.Time) {
	// Make sure we send heartbeats only to workers that have not expired
	// already
	b.sweep(now)

	for _, wd := range b.registry.workers {
		if wd.class != mdp.ClassZMQ {
			// In-process workers have no wire endpoint; the host refreshes
			// them explicitly.
			continue
		}

		// We have never sent a HB to this worker, or the last one is at
		// least a full interval old.
		if wd.lastHBSent.IsZero() || !now.Before(wd.lastHBSent.Add(b.heartbeat)) {
			if err := b.transport.Send(mdp.EncodeHeartbeat(wd.address)); err != nil {
				log.MDP_log(log.LOGLEVEL_WARNINGS, "Error when sending heartbeat to", wd.id+":", err.Error())
				continue
			}

			wd.lastHBSent = now
			b.metrics.heartbeatsSent.Inc()
		}
	}
}

// sweep runs the registry expiry scan and accounts for the result. Caller
// holds the lock.
func (b *Broker) sweep(now time.Time) {
	expired := b.registry.sweepExpired(now)

	for _, wd := range expired {
		log.MDP_log(log.LOGLEVEL_INFO, "Expired worker", wd.id)
	}

	if len(expired) > 0 {
		b.metrics.workersExpired.Add(float64(len(expired)))
	}
	b.metrics.liveWorkers.Set(float64(len(b.registry.workers)))
}

// shutdown performs a final sweep and sends a disconnect notice to every
// remaining live worker.
func (b *Broker) shutdown() {
	b.lock.Lock()
	defer b.lock.Unlock()

	// No point in notifying workers that are already gone
	b.sweep(time.Now())

	for _, wd := range b.registry.workers {
		if wd.class != mdp.ClassZMQ {
			continue
		}

		if err := b.transport.Send(mdp.EncodeDisconnect(wd.address)); err != nil {
			log.MDP_log(log.LOGLEVEL_WARNINGS, "Error when sending disconnect to", wd.id+":", err.Error())
		}
	}

	b.registry = newRegistry(b.ttl())
	b.metrics.liveWorkers.Set(0)

	log.MDP_log(log.LOGLEVEL_INFO, "Stopped MDP broker at", b.address)
}
