package pipeline

// RunContext tracks artifacts regenerated under force so repeated forced
// batches sharing it regenerate each artifact at most once.
//
// A nil RunContext remembers nothing. It is not safe for concurrent use;
// passes are sequential.
type RunContext struct {
	seen map[string]struct{}
}

// NewRunContext returns an empty run context.
func NewRunContext() *RunContext {
	return &RunContext{seen: make(map[string]struct{})}
}

// Seen reports whether key was regenerated earlier in this run.
func (r *RunContext) Seen(key string) bool {
	if r == nil {
		return false
	}

	_, ok := r.seen[key]

	return ok
}

// Mark records key as regenerated.
func (r *RunContext) Mark(key string) {
	if r == nil {
		return
	}

	r.seen[key] = struct{}{}
}

// Len returns the number of regenerated keys.
func (r *RunContext) Len() int {
	if r == nil {
		return 0
	}

	return len(r.seen)
}
