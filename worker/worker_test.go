package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbroker/majordomo/mdp"
)

func TestParseBrokerRequest(t *testing.T) {
	frames := [][]byte{{}, []byte(mdp.WorkerSignature), {byte(mdp.CmdRequest)}, []byte("c1"), {}, []byte("hi")}

	cmd, payload, err := parseBrokerMessage(frames)
	require.NoError(t, err)

	assert.Equal(t, mdp.CmdRequest, cmd)
	require.Len(t, payload, 3)
	assert.Equal(t, []byte("c1"), payload[0])
	assert.Equal(t, []byte("hi"), payload[2])
}

func TestParseBrokerHeartbeat(t *testing.T) {
	cmd, payload, err := parseBrokerMessage([][]byte{{}, []byte(mdp.WorkerSignature), {byte(mdp.CmdHeartbeat)}})
	require.NoError(t, err)
	assert.Equal(t, mdp.CmdHeartbeat, cmd)
	assert.Empty(t, payload)
}

func TestParseBrokerBadSignature(t *testing.T) {
	_, _, err := parseBrokerMessage([][]byte{{}, []byte("MDPC01"), {byte(mdp.CmdHeartbeat)}})
	assert.ErrorIs(t, err, mdp.ErrUnknownOriginator)
}

func TestParseBrokerShortMessage(t *testing.T) {
	_, _, err := parseBrokerMessage([][]byte{{}, []byte(mdp.WorkerSignature)})
	assert.ErrorIs(t, err, mdp.ErrMalformedMessage)
}

func TestParseBrokerTruncatedRequest(t *testing.T) {
	// REQUEST without the client envelope frames
	_, _, err := parseBrokerMessage([][]byte{{}, []byte(mdp.WorkerSignature), {byte(mdp.CmdRequest)}, []byte("c1")})
	assert.ErrorIs(t, err, mdp.ErrMalformedMessage)
}

func TestBrokerRequestMatchesBrokerEncoder(t *testing.T) {
	// What the broker sends (minus the address frame the ROUTER socket
	// strips) must parse cleanly on the worker side.
	frames := mdp.EncodeRequest([]byte("w1"), []byte("c1"), []byte("hi"))[1:]

	cmd, payload, err := parseBrokerMessage(frames)
	require.NoError(t, err)
	assert.Equal(t, mdp.CmdRequest, cmd)
	assert.Equal(t, []byte("c1"), payload[0])
	assert.Equal(t, []byte("hi"), payload[2])
}
