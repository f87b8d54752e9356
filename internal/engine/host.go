package engine

// HostEffects receives the side effects the core cannot perform itself.
// The renderer implements it; the core only forwards requests.
type HostEffects interface {
	// Focus asks the host to move focus to the named element.
	Focus(target string)
}

// NopHost ignores all host effect requests. Used when no renderer is
// attached (CLI runs, tests).
type NopHost struct{}

// Focus implements HostEffects.
func (NopHost) Focus(string) {}

// FocusRecorder captures focus requests for assertions.
type FocusRecorder struct {
	Targets []string
}

// Focus implements HostEffects.
func (r *FocusRecorder) Focus(target string) {
	r.Targets = append(r.Targets, target)
}
