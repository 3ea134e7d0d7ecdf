package actor

// IdentifierKind enumerates the three shapes a routing identifier can take.
// Call sites switching on it must handle all three.
type IdentifierKind int

const (
	// IdentifierNone means the entity reports no routing identifier.
	IdentifierNone IdentifierKind = iota

	// IdentifierSingle means exactly one identifier.
	IdentifierSingle

	// IdentifierSet means a set of identifiers; the entity is registered
	// under every one of them.
	IdentifierSet
)

// Identifier is the routing key an actor reports: none, a single value, or
// a set of values. Empty strings never survive construction, so "" can be
// used as the "absent" marker on the action side.
type Identifier struct {
	kind   IdentifierKind
	values []string
}

// NoIdentifier reports no routing identifier.
func NoIdentifier() Identifier {
	return Identifier{kind: IdentifierNone}
}

// IdentifierOf reports a single identifier. An empty value collapses to
// NoIdentifier, mirroring the "missing data means absent" rule.
func IdentifierOf(value string) Identifier {
	if value == "" {
		return NoIdentifier()
	}
	return Identifier{kind: IdentifierSingle, values: []string{value}}
}

// IdentifierSetOf reports a set of identifiers. Empty values are dropped;
// zero survivors collapse to NoIdentifier, one survivor to IdentifierSingle.
func IdentifierSetOf(values ...string) Identifier {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	switch len(kept) {
	case 0:
		return NoIdentifier()
	case 1:
		return Identifier{kind: IdentifierSingle, values: kept}
	default:
		return Identifier{kind: IdentifierSet, values: kept}
	}
}

// Kind returns the shape of the identifier.
func (id Identifier) Kind() IdentifierKind {
	return id.kind
}

// IsNone reports whether no identifier is present.
func (id Identifier) IsNone() bool {
	return id.kind == IdentifierNone
}

// Values returns the identifier values in report order. Nil for IdentifierNone.
func (id Identifier) Values() []string {
	if id.kind == IdentifierNone {
		return nil
	}
	out := make([]string, len(id.values))
	copy(out, id.values)
	return out
}
