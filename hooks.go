package assetcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The manager calls them on hot paths.
type Hooks interface {
	// A request moved to a new state.
	StateChanged(id string, s State)

	// A read was served by the backend of the given class and priority.
	// hit=false means no backend had the id.
	BackendSelected(id string, class Class, priority int, hit bool)

	// A cache write during propagation failed; the next read self-heals.
	PropagationFailed(id string, backend string, err error)

	// A fetch ended because the listener returned Cancel.
	FetchAborted(id string)

	// One backend failed to remove an id.
	RemoveFailed(id string, backend string, err error)

	// CopyAssets could not resolve or store one id.
	// reason ∈ {"miss", "corrupt", "create", "update"}
	CopyFailed(id string, reason string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StateChanged(string, State)              {}
func (NopHooks) BackendSelected(string, Class, int, bool) {}
func (NopHooks) PropagationFailed(string, string, error) {}
func (NopHooks) FetchAborted(string)                     {}
func (NopHooks) RemoveFailed(string, string, error)      {}
func (NopHooks) CopyFailed(string, string, error)        {}
