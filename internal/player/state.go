package player

// State is the transport state of the actor.
type State string

const (
	StateIdle    State = "idle"
	StateLoaded  State = "loaded"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Transport is a snapshot of the actor's transport state.
type Transport struct {
	State      State   `json:"state"`
	LoadedPath string  `json:"loaded_path,omitempty"`
	Playing    bool    `json:"playing"`
	Speed      float64 `json:"speed"`
	Volume     float64 `json:"volume"`
	// Position is in seconds.
	Position float64 `json:"position"`
}

// PositionSeconds returns the position truncated to whole seconds.
func (t Transport) PositionSeconds() uint64 {
	if t.Position <= 0 {
		return 0
	}
	return uint64(t.Position)
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 100)
}
