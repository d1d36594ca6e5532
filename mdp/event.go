package mdp

// Serializers for broker-originated events. These mirror the inbound frame
// shapes with the broker acting as originator; the first frame is always the
// destination address the ROUTER socket routes on.

var emptyFrame = []byte{}

// EncodeHeartbeat builds a broker heartbeat destined for a worker.
func EncodeHeartbeat(workerAddr []byte) [][]byte {
	return [][]byte{workerAddr, emptyFrame, []byte(WorkerSignature), CmdHeartbeat.frame()}
}

// EncodeDisconnect tells a worker the broker will forget it.
func EncodeDisconnect(workerAddr []byte) [][]byte {
	return [][]byte{workerAddr, emptyFrame, []byte(WorkerSignature), CmdDisconnect.frame()}
}

// EncodeRequest delivers a client request body to a worker. The client
// address travels along so the worker can route its reply back.
func EncodeRequest(workerAddr, clientAddr, body []byte) [][]byte {
	return [][]byte{workerAddr, emptyFrame, []byte(WorkerSignature), CmdRequest.frame(), clientAddr, emptyFrame, body}
}

// EncodeClientReply wraps a worker reply in the client-side envelope.
func EncodeClientReply(clientAddr []byte, service string, body []byte) [][]byte {
	return [][]byte{clientAddr, emptyFrame, []byte(ClientSignature), []byte(service), body}
}
