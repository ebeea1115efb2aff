package syncengine

// BodyHandle is whatever the world returns for a created body; the engine
// only stores it for the renderer.
type BodyHandle any

// World is the external fixed-step simulation.
type World interface {
	// Step advances the world by exactly one tick.
	Step()
	// CreateDynamicBody adds a body at (x, y). ok is false when the world
	// is not ready; the action is consumed either way.
	CreateDynamicBody(x, y float64) (h BodyHandle, ok bool)
}

// Body is a created body plus the presentation data that came with it.
type Body struct {
	Handle   BodyHandle
	Color    string
	ClientID string
	Nonce    int64
}
