package broker

import (
	"time"

	"github.com/zbroker/majordomo/broker/queue"
	"github.com/zbroker/majordomo/mdp"
)

// workerData is the registry's record of a known worker. The registry is the
// sole owner; every other structure refers to a worker only by its wrapped
// identity and resolves it through the registry on demand.
type workerData struct {
	id      string // mdp.WrapID(class, address)
	class   mdp.WorkerClass
	address []byte
	service string

	registeredAt   time.Time
	lastHBSent     time.Time // zero value: no heartbeat sent yet
	lastHBReceived time.Time
	expiresAt      time.Time
}

// clientRequest is one queued request waiting for a worker.
type clientRequest struct {
	client     []byte
	body       []byte
	receivedAt time.Time
	// Random log token tracking the request from queueing to dispatch
	token string
}

// serviceState holds the two FIFO queues of one service name.
type serviceState struct {
	name     string
	requests queue.Queue[clientRequest]
	workers  queue.Queue[string] // wrapped worker identities
}

func newServiceState(name string) *serviceState {
	return &serviceState{
		name:     name,
		requests: queue.NewQueue[clientRequest](8),
		workers:  queue.NewQueue[string](8),
	}
}

// registry owns all workers and all service queues. Callers hold the broker
// lock; none of these methods synchronize on their own.
type registry struct {
	workers  map[string]*workerData
	services map[string]*serviceState
	ttl      time.Duration
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{
		workers:  make(map[string]*workerData),
		services: make(map[string]*serviceState),
		ttl:      ttl,
	}
}

// getService returns the state for a service name, creating it lazily -
// clients may well connect before any worker does, and vice versa.
func (r *registry) getService(name string) *serviceState {
	svc, ok := r.services[name]
	if !ok {
		svc = newServiceState(name)
		r.services[name] = svc
	}
	return svc
}

// registerReady creates or overwrites the record for a worker and appends it
// to the service's availability queue.
func (r *registry) registerReady(class mdp.WorkerClass, address []byte, serviceName string, now time.Time) *workerData {
	wd := &workerData{
		id:           mdp.WrapID(class, address),
		class:        class,
		address:      address,
		service:      serviceName,
		registeredAt: now,
		expiresAt:    now.Add(r.ttl),
	}

	// A re-registering worker must not be queued twice, nor linger under a
	// previously declared service name.
	r.removeFromServices(wd.id)

	r.workers[wd.id] = wd
	r.getService(serviceName).workers.Push(wd.id)

	return wd
}

// heartbeat refreshes a worker's expiry. Returns false for an unknown
// identity, which the caller reports but otherwise ignores.
func (r *registry) heartbeat(id string, now time.Time) bool {
	wd, ok := r.workers[id]
	if !ok {
		return false
	}

	wd.lastHBReceived = now
	wd.expiresAt = now.Add(r.ttl)
	return true
}

// take removes a worker from the registry for request assignment. Absence
// from the registry is what models "busy": the worker rejoins the pool only
// with a fresh READY.
func (r *registry) take(id string) *workerData {
	wd := r.workers[id]
	delete(r.workers, id)
	return wd
}

// disconnect removes a worker from the registry and from every availability
// queue that still references it. Returns false if it was unknown.
func (r *registry) disconnect(id string) bool {
	_, ok := r.workers[id]
	delete(r.workers, id)
	r.removeFromServices(id)
	return ok
}

func (r *registry) removeFromServices(id string) {
	for _, svc := range r.services {
		svc.workers.Remove(func(qid string) bool { return qid == id })
	}
}

// sweepExpired goes through all the workers and deletes any that are expired
// in every place they are referred to, atomically with respect to the broker
// lock. It also drops service entries that hold neither pending requests nor
// available workers; they are recreated lazily, so a long-running broker does
// not accumulate one entry per service name ever seen. Returns the removed
// workers.
func (r *registry) sweepExpired(now time.Time) []*workerData {
	var expired []*workerData

	for id, wd := range r.workers {
		if !now.Before(wd.expiresAt) {
			expired = append(expired, wd)
			delete(r.workers, id)
		}
	}

	if len(expired) > 0 {
		for _, svc := range r.services {
			svc.workers.Remove(func(qid string) bool {
				_, live := r.workers[qid]
				return !live
			})
		}
	}

	for name, svc := range r.services {
		if svc.requests.Len() == 0 && svc.workers.Len() == 0 {
			delete(r.services, name)
		}
	}

	return expired
}
