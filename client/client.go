/*
Package client implements the client side of the Majordomo Protocol 0.1.

Synchronous client. It can only be used in a blocking way; it is
thread-safe, but locks and blocks on any function call. The default timeout
is 4 seconds per attempt with 2 retries, which you might set to other
values.
*/
package client

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	zmq "github.com/pebbe/zmq4"

	"github.com/zbroker/majordomo/log"
	"github.com/zbroker/majordomo/mdp"
)

// ErrTimeout is returned when no reply arrived within timeout x (retries+1).
var ErrTimeout = errors.New("client: no reply from broker")

type Client struct {
	lock   sync.Mutex
	socket *zmq.Socket

	broker string
	// Stable random identity, so a reply can still be routed to us after the
	// socket has been recreated by a retry.
	identity string

	timeout time.Duration
	retries int
}

// New creates a client talking to the broker at brokerAddr.
func New(brokerAddr string) (*Client, error) {
	cl := &Client{
		broker:   brokerAddr,
		identity: "client-" + uuid.NewString(),
		timeout:  4 * time.Second,
		retries:  2,
	}

	if err := cl.connect(); err != nil {
		return nil, err
	}

	return cl, nil
}

func (cl *Client) connect() error {
	if cl.socket != nil {
		cl.socket.Close()
	}

	socket, err := zmq.NewSocket(zmq.REQ)

	if err != nil {
		log.MDP_log(log.LOGLEVEL_ERRORS, "Error when creating Req socket:", err.Error())
		return err
	}

	socket.SetIdentity(cl.identity)
	socket.SetLinger(0)
	socket.SetSndtimeo(cl.timeout)
	socket.SetRcvtimeo(cl.timeout)

	if err := socket.Connect(cl.broker); err != nil {
		log.MDP_log(log.LOGLEVEL_ERRORS, "Error when connecting to broker:", err.Error())
		socket.Close()
		return err
	}

	cl.socket = socket
	return nil
}

// Sets the duration to wait for the reply to a single attempt.
func (cl *Client) SetTimeout(timeout time.Duration) {
	cl.lock.Lock()
	defer cl.lock.Unlock()

	cl.timeout = timeout
	cl.socket.SetSndtimeo(timeout)
	cl.socket.SetRcvtimeo(timeout)
}

// How often should the client retry after encountering a timeout?
func (cl *Client) SetRetries(n int) {
	cl.lock.Lock()
	defer cl.lock.Unlock()

	cl.retries = n
}

// Close the client's socket. The client may not be used afterwards.
func (cl *Client) Close() {
	cl.lock.Lock()
	defer cl.lock.Unlock()

	cl.socket.Close()
	cl.socket = nil
}

/*
Request sends body to the named service and waits for the reply body.

There is no per-request state on the broker: a request waits in the broker's
queue until a worker for the service shows up. If no reply arrives within
the timeout, the socket is recreated (REQ sockets are strictly
send/receive-alternating) and the request is sent again; after the
configured number of retries, ErrTimeout is returned.
*/
func (cl *Client) Request(serviceName string, body []byte) ([]byte, error) {
	cl.lock.Lock()
	defer cl.lock.Unlock()

	for attempt := 0; attempt <= cl.retries; attempt++ {
		// REQ prepends the empty delimiter frame itself
		if _, err := cl.socket.SendMessage(mdp.ClientSignature, serviceName, body); err != nil {
			log.MDP_log(log.LOGLEVEL_WARNINGS, "Error when sending request:", err.Error())
			if cerr := cl.connect(); cerr != nil {
				return nil, cerr
			}
			continue
		}

		frames, err := cl.socket.RecvMessageBytes(0)

		if err != nil {
			log.MDP_log(log.LOGLEVEL_WARNINGS, "No reply from", serviceName, "yet, reconnecting")
			if cerr := cl.connect(); cerr != nil {
				return nil, cerr
			}
			continue
		}

		return parseReply(frames)
	}

	return nil, ErrTimeout
}

// parseReply validates the reply envelope [signature, serviceName, body].
func parseReply(frames [][]byte) ([]byte, error) {
	if len(frames) != 3 {
		return nil, fmt.Errorf("%w: reply with %d frames", mdp.ErrMalformedMessage, len(frames))
	}

	if !bytes.Equal(frames[0], []byte(mdp.ClientSignature)) {
		return nil, fmt.Errorf("%w: %q", mdp.ErrUnknownOriginator, frames[0])
	}

	return frames[2], nil
}
