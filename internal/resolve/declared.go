// Package resolve maps input identifiers to knowledge entities and reduces
// ambiguous group membership to winner gene sets.
package resolve

// TypeClass classifies how an identifier's declared type should be
// interpreted. The special "-" and "=" markers are parsed once, here, and
// never re-inspected per lookup.
type TypeClass int

const (
	// AnyType searches every identifier type.
	AnyType TypeClass = iota
	// NamedType searches a single identifier type by name.
	NamedType
	// PrimaryLabel matches only an entity's primary label ("-").
	PrimaryLabel
	// InternalID accepts a prior run's internal entity id verbatim ("=").
	InternalID
)

// DeclaredType is the parsed form of an input column's identifier type.
type DeclaredType struct {
	Class TypeClass
	Name  string // only for NamedType
}

// ParseDeclaredType interprets a raw identifier-type string.
func ParseDeclaredType(s string) DeclaredType {
	switch s {
	case "":
		return DeclaredType{Class: AnyType}
	case "-":
		return DeclaredType{Class: PrimaryLabel}
	case "=":
		return DeclaredType{Class: InternalID}
	}
	return DeclaredType{Class: NamedType, Name: s}
}

func (d DeclaredType) String() string {
	switch d.Class {
	case AnyType:
		return "(any)"
	case PrimaryLabel:
		return "(label)"
	case InternalID:
		return "(id)"
	}
	return d.Name
}

// Heuristic selects the ambiguity-reduction strategy for group membership.
type Heuristic int

const (
	// ReduceNone keeps every implicated entity as an equal candidate.
	ReduceNone Heuristic = iota
	// ReduceImplication scores entities by how many distinct identifiers
	// implicate them.
	ReduceImplication
	// ReduceQuality weights each identifier's contribution by the inverse of
	// how many entities it implicates.
	ReduceQuality
	// ReduceAny accepts the union of the implication and quality winners.
	ReduceAny
)

// ParseHeuristic maps a configuration string to its Heuristic, defaulting to
// ReduceNone for unrecognized values (validation happens upstream).
func ParseHeuristic(s string) Heuristic {
	switch s {
	case "implication":
		return ReduceImplication
	case "quality":
		return ReduceQuality
	case "any":
		return ReduceAny
	}
	return ReduceNone
}

func (h Heuristic) String() string {
	switch h {
	case ReduceImplication:
		return "implication"
	case ReduceQuality:
		return "quality"
	case ReduceAny:
		return "any"
	}
	return "no"
}
