package domain

// ResolutionKind enumerates every outcome of resolving a route parameter
// against the room list.
type ResolutionKind int

const (
	// ResolvedNone: no ref and no rooms; terminal empty state, not an error.
	ResolvedNone ResolutionKind = iota
	// ResolvedExisting: the ref (or the fallback) selected a known room id.
	ResolvedExisting
	// ResolvedRedirect: the ref was a counterpart id matching an existing
	// room; select that room and rewrite the canonical path to its id.
	ResolvedRedirect
	// ResolveCreate: the ref is a counterpart id with no room yet; a room
	// must be created for it.
	ResolveCreate
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolvedExisting:
		return "existing"
	case ResolvedRedirect:
		return "redirect"
	case ResolveCreate:
		return "create"
	default:
		return "none"
	}
}

// Resolution is the outcome of RoomResolver: which room became active, or
// which counterpart a room must be created for.
type Resolution struct {
	Kind          ResolutionKind
	RoomID        string
	CounterpartID string
}

// IsCounterpartID reports whether ref has the shape of an opaque participant
// or room identifier: exactly 24 hexadecimal characters.
func IsCounterpartID(ref string) bool {
	if len(ref) != 24 {
		return false
	}
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
