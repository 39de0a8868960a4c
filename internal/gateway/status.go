package gateway

// Status is the connection phase of the gateway client. Exactly one value
// is live at a time.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// Label is the human-readable form shown to users.
func (s Status) Label() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusConnected:
		return "Connected"
	case StatusConnecting:
		return "Connecting"
	case StatusError:
		return "Error"
	default:
		return "Disconnected"
	}
}
