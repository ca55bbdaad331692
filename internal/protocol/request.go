package protocol

import "github.com/goccy/go-json"

// RequestKind enumerates the request kinds a client may send.
type RequestKind string

const (
	RunCode             RequestKind = "RUN_CODE"
	RunCommand          RequestKind = "RUN_COMMAND"
	InstallRequirements RequestKind = "INSTALL_REQUIREMENTS"
	SetEnvVars          RequestKind = "SET_ENV_VARS"
	SwitchInterpreter   RequestKind = "SWITCH_INTERPRETER"
	DeleteInterpreter   RequestKind = "DELETE_INTERPRETER"
	ShutdownClient      RequestKind = "SHUTDOWN_CLIENT"
)

// Request is the decoded form of a single client->broker payload. Only the
// fields relevant to Kind are populated; the others are left zero.
type Request struct {
	Kind RequestKind `json:"kind"`
	Env  string      `json:"env,omitempty"`

	Source string            `json:"source,omitempty"` // RUN_CODE
	Argv   []string          `json:"argv,omitempty"`    // RUN_COMMAND
	Names  []string          `json:"names,omitempty"`   // INSTALL_REQUIREMENTS
	Vars   map[string]string `json:"vars,omitempty"`    // SET_ENV_VARS
}

// DecodeRequest parses a single client payload. A malformed payload (bad
// JSON, unknown kind) is reported to the caller so it can be turned into an
// EXCEPTION{MalformedRequest} rather than killing the connection.
func DecodeRequest(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, err
	}
	switch req.Kind {
	case RunCode, RunCommand, InstallRequirements, SetEnvVars, SwitchInterpreter, DeleteInterpreter, ShutdownClient:
		return req, nil
	default:
		return Request{}, errUnknownRequestKind(req.Kind)
	}
}

// Encode serializes a Request for transmission (used by the broker's side
// of the broker<->worker channel, and by tests exercising the wire path).
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

type unknownRequestKindError string

func (e unknownRequestKindError) Error() string {
	return "unknown request kind: " + string(e)
}

func errUnknownRequestKind(kind RequestKind) error {
	return unknownRequestKindError(kind)
}
