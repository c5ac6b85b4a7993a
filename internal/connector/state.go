package connector

// State состояние соединения с рантаймом capability.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot best-effort срез состояния коннектора для health.
type Snapshot struct {
	State         State
	ServerName    string
	ServerVersion string
	PID           int
	Failure       string
}

// Ready сообщает, можно ли передавать вызовы.
func (s Snapshot) Ready() bool { return s.State == StateReady }
