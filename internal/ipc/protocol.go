// Package ipc exposes a unix-socket control surface so a second invocation
// or a compositor keybind can poke the running daemon.
package ipc

// Commands accepted over the control socket.
const (
	CommandStatus = "status"
	CommandCancel = "cancel"
	CommandReset  = "reset"
	CommandReload = "reload"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK          bool   `json:"ok"`
	State       string `json:"state,omitempty"`
	ActiveModel string `json:"active_model,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}
