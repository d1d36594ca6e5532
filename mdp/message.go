package mdp

// Support types for dealing with ZeroMQ multi-frame messages.
// Every inbound message has the shape
//
//	[senderAddress, "", signature, payload...]
//
// where signature selects the client or the worker framing. Parse turns the
// raw frames into exactly one of the Message variants below; malformed input
// yields an error instead of a partial message.

import (
	"bytes"
	"fmt"
)

// Message is one of ClientRequest, WorkerReady, WorkerReply, WorkerHeartbeat
// or WorkerDisconnect.
type Message interface {
	isMessage()
}

// ClientRequest asks for a named service to process an opaque body.
type ClientRequest struct {
	Sender  []byte
	Service string
	Body    []byte
}

// WorkerReady announces that the sending worker is available for a service.
type WorkerReady struct {
	Sender  []byte
	Service string
}

// WorkerReply carries a worker's answer destined for a client address.
type WorkerReply struct {
	Sender []byte
	Client []byte
	Body   []byte
}

// WorkerHeartbeat proves the sending worker is still alive.
type WorkerHeartbeat struct {
	Sender []byte
}

// WorkerDisconnect announces that the sending worker is going away.
type WorkerDisconnect struct {
	Sender []byte
}

func (ClientRequest) isMessage()    {}
func (WorkerReady) isMessage()      {}
func (WorkerReply) isMessage()      {}
func (WorkerHeartbeat) isMessage()  {}
func (WorkerDisconnect) isMessage() {}

// Parse decodes an inbound multipart message. The error is one of
// ErrMalformedMessage, ErrUnknownCommand or ErrUnknownOriginator (wrapped
// with detail).
func Parse(frames [][]byte) (Message, error) {
	if len(frames) < 4 {
		return nil, fmt.Errorf("%w: %d frames", ErrMalformedMessage, len(frames))
	}

	sender := frames[0]
	signature := frames[2]
	payload := frames[3:]

	switch {
	case bytes.Equal(signature, []byte(ClientSignature)):
		return parseClient(sender, payload)
	case bytes.Equal(signature, []byte(WorkerSignature)):
		return parseWorker(sender, payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOriginator, signature)
	}
}

func parseClient(sender []byte, payload [][]byte) (Message, error) {
	if len(payload) != 2 {
		return nil, fmt.Errorf("%w: client message has %d payload frames", ErrMalformedMessage, len(payload))
	}
	return ClientRequest{Sender: sender, Service: string(payload[0]), Body: payload[1]}, nil
}

func parseWorker(sender []byte, payload [][]byte) (Message, error) {
	if len(payload[0]) != 1 {
		return nil, fmt.Errorf("%w: command frame of length %d", ErrMalformedMessage, len(payload[0]))
	}

	command := Command(payload[0][0])
	rest := payload[1:]

	switch command {
	case CmdReady:
		if len(rest) != 1 {
			return nil, fmt.Errorf("%w: READY with %d payload frames", ErrMalformedMessage, len(rest))
		}
		return WorkerReady{Sender: sender, Service: string(rest[0])}, nil
	case CmdReply:
		// [clientAddress, "", replyBody]
		if len(rest) != 3 {
			return nil, fmt.Errorf("%w: REPLY with %d payload frames", ErrMalformedMessage, len(rest))
		}
		return WorkerReply{Sender: sender, Client: rest[0], Body: rest[2]}, nil
	case CmdHeartbeat:
		return WorkerHeartbeat{Sender: sender}, nil
	case CmdDisconnect:
		return WorkerDisconnect{Sender: sender}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}
