/*
Package worker implements the worker side of the Majordomo Protocol 0.1: it
connects to a broker, registers for one named service and serves requests
through a handler function.

The broker forgets a worker the moment it assigns a request to it, so the
worker re-registers with a fresh READY after every reply. When the broker
falls silent for longer than the configured liveness window, the worker
reconnects and registers again.
*/
package worker

import (
	"fmt"
	"sync/atomic"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/zbroker/majordomo/log"
	"github.com/zbroker/majordomo/mdp"
)

// Handler processes one request body and produces the reply body.
type Handler func(body []byte) ([]byte, error)

type Worker struct {
	broker  string
	service string
	handler Handler

	heartbeat time.Duration
	liveness  int
	reconnect time.Duration

	socket *zmq.Socket
	poller *zmq.Poller

	lastHBSent   time.Time
	livenessLeft int

	keepRunning atomic.Bool
}

// New creates a worker serving serviceName through the broker at brokerAddr.
// Defaults: 2.5s heartbeat, liveness of 3 missed cycles, 2.5s reconnect
// delay.
func New(brokerAddr, serviceName string, handler Handler) *Worker {
	w := &Worker{
		broker:    brokerAddr,
		service:   serviceName,
		handler:   handler,
		heartbeat: 2500 * time.Millisecond,
		liveness:  3,
		reconnect: 2500 * time.Millisecond,
	}
	w.keepRunning.Store(true)
	return w
}

// How often to send a heartbeat to the broker; also the poll timeout.
func (w *Worker) SetHeartbeat(d time.Duration) {
	w.heartbeat = d
}

// After how many silent heartbeat cycles the broker is presumed dead.
func (w *Worker) SetLiveness(n int) {
	w.liveness = n
}

// How long to wait before reconnecting to a presumed-dead broker.
func (w *Worker) SetReconnect(d time.Duration) {
	w.reconnect = d
}

/*
Run connects to the broker and serves requests until Stop() is called. The
initial connect error is returned; afterwards every error is logged and the
worker keeps trying. On exit it sends DISCONNECT and closes its socket.
*/
func (w *Worker) Run() error {
	if err := w.connect(); err != nil {
		return err
	}

	log.MDP_log(log.LOGLEVEL_INFO, "Worker for", w.service, "connected to", w.broker)

	for w.keepRunning.Load() {
		polled, err := w.poller.Poll(w.heartbeat)

		if err != nil {
			log.MDP_log(log.LOGLEVEL_ERRORS, "Polling error in worker loop:", err.Error())
			continue
		}

		if len(polled) > 0 {
			frames, err := w.socket.RecvMessageBytes(0)

			if err != nil {
				log.MDP_log(log.LOGLEVEL_WARNINGS, "Skipped incoming message, error:", err.Error())
				continue
			}

			// Any traffic proves the broker is alive
			w.livenessLeft = w.liveness
			w.handleMessage(frames)
		} else {
			w.livenessLeft--
			if w.livenessLeft <= 0 {
				log.MDP_log(log.LOGLEVEL_WARNINGS, "Broker silent, reconnecting in", w.reconnect)
				time.Sleep(w.reconnect)

				if err := w.connect(); err != nil {
					continue
				}
			}
		}

		w.heartbeatBroker()
	}

	w.send(mdp.CmdDisconnect)
	w.socket.Close()
	return nil
}

// Stop makes Run return after its current cycle.
func (w *Worker) Stop() {
	w.keepRunning.Store(false)
}

// connect (re)creates the socket and announces readiness to the broker.
func (w *Worker) connect() error {
	if w.socket != nil {
		w.socket.Close()
	}

	socket, err := zmq.NewSocket(zmq.DEALER)

	if err != nil {
		log.MDP_log(log.LOGLEVEL_ERRORS, "Error when creating Dealer socket:", err.Error())
		return err
	}

	socket.SetLinger(0)

	if err := socket.Connect(w.broker); err != nil {
		log.MDP_log(log.LOGLEVEL_ERRORS, "Error when connecting to broker:", err.Error())
		socket.Close()
		return err
	}

	w.socket = socket
	w.poller = zmq.NewPoller()
	w.poller.Add(socket, zmq.POLLIN)
	w.livenessLeft = w.liveness
	w.lastHBSent = time.Time{}

	return w.send(mdp.CmdReady, []byte(w.service))
}

// send builds a worker-originated message; DEALER sockets need the empty
// delimiter frame spelled out.
func (w *Worker) send(cmd mdp.Command, frames ...[]byte) error {
	msg := append([][]byte{{}, []byte(mdp.WorkerSignature), {byte(cmd)}}, frames...)
	_, err := w.socket.SendMessage(msg)
	return err
}

func (w *Worker) heartbeatBroker() {
	now := time.Now()

	if w.lastHBSent.IsZero() || !now.Before(w.lastHBSent.Add(w.heartbeat)) {
		if err := w.send(mdp.CmdHeartbeat); err != nil {
			log.MDP_log(log.LOGLEVEL_WARNINGS, "Error when sending heartbeat:", err.Error())
			return
		}
		w.lastHBSent = now
	}
}

func (w *Worker) handleMessage(frames [][]byte) {
	cmd, payload, err := parseBrokerMessage(frames)

	if err != nil {
		log.MDP_log(log.LOGLEVEL_WARNINGS, "Dropped broker message:", err.Error())
		return
	}

	switch cmd {
	case mdp.CmdRequest:
		w.serveRequest(payload[0], payload[2])
	case mdp.CmdHeartbeat:
		// Liveness was already refreshed on receipt
	case mdp.CmdDisconnect:
		log.MDP_log(log.LOGLEVEL_INFO, "Broker sent DISCONNECT, re-registering")
		if err := w.connect(); err != nil {
			log.MDP_log(log.LOGLEVEL_ERRORS, "Error when reconnecting:", err.Error())
		}
	default:
		log.MDP_log(log.LOGLEVEL_WARNINGS, "Dropped broker message with command", cmd)
	}
}

// parseBrokerMessage validates a broker-to-worker message
// ["", signature, command, payload...] and returns command and payload.
func parseBrokerMessage(frames [][]byte) (mdp.Command, [][]byte, error) {
	if len(frames) < 3 {
		return 0, nil, fmt.Errorf("%w: %d frames", mdp.ErrMalformedMessage, len(frames))
	}

	if string(frames[1]) != mdp.WorkerSignature {
		return 0, nil, fmt.Errorf("%w: %q", mdp.ErrUnknownOriginator, frames[1])
	}

	if len(frames[2]) != 1 {
		return 0, nil, fmt.Errorf("%w: command frame of length %d", mdp.ErrMalformedMessage, len(frames[2]))
	}

	cmd := mdp.Command(frames[2][0])

	// REQUEST carries [clientAddress, "", body]
	if cmd == mdp.CmdRequest && len(frames) != 6 {
		return 0, nil, fmt.Errorf("%w: REQUEST with %d frames", mdp.ErrMalformedMessage, len(frames))
	}

	return cmd, frames[3:], nil
}

func (w *Worker) serveRequest(client, body []byte) {
	reply, err := w.handler(body)

	if err != nil {
		// MDP 0.1 has no error envelope; an empty body is all we can say.
		log.MDP_log(log.LOGLEVEL_WARNINGS, "Handler failed:", err.Error())
		reply = []byte{}
	}

	if err := w.send(mdp.CmdReply, client, []byte{}, reply); err != nil {
		log.MDP_log(log.LOGLEVEL_WARNINGS, "Error when sending reply:", err.Error())
	}

	// The broker forgot us when it assigned the request; rejoin the pool.
	if err := w.send(mdp.CmdReady, []byte(w.service)); err != nil {
		log.MDP_log(log.LOGLEVEL_WARNINGS, "Error when re-registering:", err.Error())
	}
}
