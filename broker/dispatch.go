package broker

import (
	"fmt"
	"time"

	"github.com/zbroker/majordomo/log"
	"github.com/zbroker/majordomo/mdp"
)

// dispatch sends pending requests for a service to available workers, oldest
// request to oldest worker, for as long as both queues are non-empty. Caller
// holds the lock.
func (b *Broker) dispatch(serviceName string, now time.Time) {
	// The service entry must exist at this point; every call site has just
	// pushed a request or a worker into it.
	svc := b.registry.getService(serviceName)

	// Clean up expired workers before attempting to deliver any messages
	b.sweep(now)

	for svc.requests.Len() > 0 && svc.workers.Len() > 0 {
		id, _ := svc.workers.Pop()

		wd := b.registry.take(id)
		if wd == nil {
			// Queue entry outlived its record. The sweep above purges these,
			// so this should not happen; the request stays at the front for
			// the next worker in line.
			continue
		}

		// The request leaves its queue only once delivery has succeeded; a
		// failed delivery costs the worker (it rejoins via its READY cycle),
		// never the request.
		req, _ := svc.requests.Peek()

		var err error
		switch wd.class {
		case mdp.ClassLocal:
			if b.localDelivery == nil {
				log.MDP_log(log.LOGLEVEL_ERRORS, "No local delivery installed, cannot serve request for", serviceName)
				continue
			}
			err = b.localDelivery(wd.address, req.client, req.body)
		default:
			err = b.transport.Send(mdp.EncodeRequest(wd.address, req.client, req.body))
		}

		if err != nil {
			log.MDP_log(log.LOGLEVEL_ERRORS, "Error when delivering request to", wd.id+":", err.Error())
			continue
		}

		svc.requests.Pop()
		b.metrics.requestsDispatched.Inc()

		if log.IsLoggingEnabled(log.LOGLEVEL_DEBUG) {
			log.MDP_log(log.LOGLEVEL_DEBUG, fmt.Sprintf("[%s] Dispatched request for %s to %s", req.token, serviceName, wd.id))
		}
	}

	b.metrics.liveWorkers.Set(float64(len(b.registry.workers)))
}
