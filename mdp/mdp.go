/*
Package mdp implements the framing of the ZeroMQ Majordomo Protocol 0.1
(http://rfc.zeromq.org/spec:7): originator signatures, worker commands,
parsing of inbound multipart messages into typed events and serialization
of outbound broker events.

All payloads are opaque byte frames; the broker never interprets request
or reply bodies.
*/
package mdp

import (
	"errors"
	"fmt"
	"strings"
)

// Originator signatures, carried in the third frame of every message.
const (
	ClientSignature = "MDPC01"
	WorkerSignature = "MDPW01"
)

// Commands sent in the first payload frame of worker-originated messages
// (and of broker-to-worker messages).
type Command byte

const (
	CmdReady      Command = 0x01
	CmdRequest    Command = 0x02
	CmdReply      Command = 0x03
	CmdHeartbeat  Command = 0x04
	CmdDisconnect Command = 0x05
)

var command_strings = map[Command]string{
	CmdReady:      "READY",
	CmdRequest:    "REQUEST",
	CmdReply:      "REPLY",
	CmdHeartbeat:  "HEARTBEAT",
	CmdDisconnect: "DISCONNECT",
}

func (c Command) String() string {
	if s, ok := command_strings[c]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", byte(c))
}

func (c Command) frame() []byte {
	return []byte{byte(c)}
}

// Class of a worker: either a peer reachable over the wire transport, or an
// in-process handler reached through an injected delivery function.
type WorkerClass string

const (
	ClassZMQ   WorkerClass = "zmq"
	ClassLocal WorkerClass = "local"
)

// Separator between the class tag and the raw transport address in a wrapped
// worker identity. ROUTER-generated addresses never contain it, and the class
// tags are plain ASCII, so UnwrapID can split on the first occurrence.
const idSeparator = "\x00"

// WrapID combines a worker class and a raw transport address into a single
// registry key, so addresses from different classes cannot collide.
func WrapID(class WorkerClass, address []byte) string {
	return string(class) + idSeparator + string(address)
}

// UnwrapID reverses WrapID: UnwrapID(WrapID(c, a)) == (c, a) for every
// address that does not contain the separator.
func UnwrapID(wrapped string) (WorkerClass, []byte, error) {
	i := strings.Index(wrapped, idSeparator)
	if i < 0 {
		return "", nil, fmt.Errorf("%w: no class separator in %q", ErrMalformedMessage, wrapped)
	}
	return WorkerClass(wrapped[:i]), []byte(wrapped[i+len(idSeparator):]), nil
}

var (
	// ErrMalformedMessage marks messages with too few frames or a frame
	// layout not matching the command.
	ErrMalformedMessage = errors.New("mdp: malformed message")
	// ErrUnknownCommand marks worker messages with an unsupported command
	// frame. The message is dropped, the broker keeps running.
	ErrUnknownCommand = errors.New("mdp: unknown worker command")
	// ErrUnknownOriginator marks messages carrying neither the client nor
	// the worker signature. The message is rejected outright.
	ErrUnknownOriginator = errors.New("mdp: unknown originator signature")
)
