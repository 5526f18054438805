package ipc

// Request is one command sent to the running engine. Supported commands:
// status, pause, resume, stop.
type Request struct {
	Command string `json:"command"`
}

// Response reports the engine state after handling a command.
type Response struct {
	OK       bool   `json:"ok"`
	Session  string `json:"session,omitempty"`
	State    string `json:"state,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Page     int    `json:"page"`
	Row      int    `json:"row"`
	Key      int    `json:"key"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
