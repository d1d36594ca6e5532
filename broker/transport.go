package broker

import (
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/zbroker/majordomo/log"
)

/*
Transport moves opaque multipart byte-frame messages for the broker. It is an
injected collaborator so embedding hosts and tests can supply their own;
NewRouterTransport below is the ZeroMQ implementation the broker normally
runs on.
*/
type Transport interface {
	Bind(endpoint string) error
	// Poll waits up to timeout, reporting whether a message can be received.
	Poll(timeout time.Duration) (bool, error)
	Recv() ([][]byte, error)
	Send(frames [][]byte) error
	Close() error
}

type routerTransport struct {
	socket *zmq.Socket
	poller *zmq.Poller
}

// NewRouterTransport creates a transport backed by a ZeroMQ ROUTER socket.
func NewRouterTransport() (Transport, error) {
	socket, err := zmq.NewSocket(zmq.ROUTER)

	if err != nil {
		log.MDP_log(log.LOGLEVEL_ERRORS, "Error when creating Router socket:", err.Error())
		return nil, err
	}

	socket.SetLinger(0)

	poller := zmq.NewPoller()
	poller.Add(socket, zmq.POLLIN)

	return &routerTransport{socket: socket, poller: poller}, nil
}

func (t *routerTransport) Bind(endpoint string) error {
	return t.socket.Bind(endpoint)
}

func (t *routerTransport) Poll(timeout time.Duration) (bool, error) {
	polled, err := t.poller.Poll(timeout)

	if err != nil {
		return false, err
	}

	return len(polled) > 0, nil
}

func (t *routerTransport) Recv() ([][]byte, error) {
	return t.socket.RecvMessageBytes(0)
}

func (t *routerTransport) Send(frames [][]byte) error {
	_, err := t.socket.SendMessage(frames)
	return err
}

func (t *routerTransport) Close() error {
	return t.socket.Close()
}
