// Package particlekind defines the small sum type spec §9 asks for in
// place of the kind-discriminating branches of the original source:
// {gas, sink, other}. Only Gas (and, for the averaged-quantity hook of
// spec §4.G, Sink) participate in the core's hot loops.
package particlekind

// Kind is a particle's role in the density/gradient core.
type Kind int

const (
	// Gas particles carry the full GasState and participate in both the
	// density and gradient passes.
	Gas Kind = iota
	// Sink particles use a possibly larger search radius (spec §4.C
	// extension hook) and, post-density, receive averaged surrounding
	// fluid quantities (spec §4.G) instead of their own state.
	Sink
	// Other particles never participate in the core.
	Other
)

// String names the kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case Gas:
		return "gas"
	case Sink:
		return "sink"
	default:
		return "other"
	}
}

// ParticipatesInDensity reports whether a particle of this kind is ever
// handed to the density visitor.
func (k Kind) ParticipatesInDensity() bool {
	return k == Gas || k == Sink
}

// GasMask is the kind-mask the tree-walk driver applies when searching for
// density/gradient neighbors: spec §4.C fixes this to "gas only" for the
// core contract; sink targets still search against gas neighbors, they are
// just not neighbors themselves.
func GasMask(k Kind) bool {
	return k == Gas
}
