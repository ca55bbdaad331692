package protocol

// readyPayload is the sentinel a freshly spawned interpreter worker writes
// on its stdout once it has activated its environment and installed its
// capture hooks (§4.D: "... and report READY"). It never reaches a client;
// it is purely the broker<->worker startup handshake.
var readyPayload = []byte("CILLOW_WORKER_READY")

// ReadyPayload returns the bytes a worker writes to signal readiness.
func ReadyPayload() []byte {
	return append([]byte(nil), readyPayload...)
}

// IsReady reports whether payload is the worker-ready sentinel.
func IsReady(payload []byte) bool {
	if len(payload) != len(readyPayload) {
		return false
	}
	for i := range payload {
		if payload[i] != readyPayload[i] {
			return false
		}
	}
	return true
}
