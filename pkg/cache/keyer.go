package cache

// KeySchemaVersion is mixed into every solution key. Bump it when the
// stored result format changes.
const KeySchemaVersion = 1

// Keyer derives cache keys.
type Keyer interface {
	// SolutionKey identifies the result of solving the problem whose
	// canonical bytes hash to problemHash.
	SolutionKey(problemHash string, opts SolutionKeyOpts) string
}

// SolutionKeyOpts holds the inputs besides the problem that affect a result.
type SolutionKeyOpts struct {
	// Kind is "solve" or "nudge".
	Kind string
	// Parameters is any JSON-encodable parameter set.
	Parameters any
}

// DefaultKeyer hashes the problem hash, kind and parameters together.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SolutionKey returns "solution:<sha256>".
func (DefaultKeyer) SolutionKey(problemHash string, opts SolutionKeyOpts) string {
	return hashKey("solution", KeySchemaVersion, problemHash, opts.Kind, opts.Parameters)
}
