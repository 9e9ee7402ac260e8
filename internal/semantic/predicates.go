// Package semantic produces subject-predicate-object facts from matched
// contexts. Generators form a small closed catalog, each gated on the
// presence of specific entity kinds.
package semantic

// Fact predicates emitted by the generators. The set is closed; consumers
// can switch on these without parsing.
const (
	// PredicateMustComplyWith links a stakeholder role to an obligation
	// phrase introduced by a modal verb.
	PredicateMustComplyWith = "MUST_COMPLY_WITH"

	// PredicateResultsIn links a regulatory violation to a penalty phrase.
	PredicateResultsIn = "RESULTS_IN"

	// PredicateHasValue links a measurement requirement to its value.
	PredicateHasValue = "HAS_VALUE"

	// PredicateHasFigure links an organization to a large monetary amount
	// or headcount figure.
	PredicateHasFigure = "HAS_FIGURE"

	// Organizational action predicates, one per recognized verb.
	PredicateProvides = "PROVIDES"
	PredicateDelivers = "DELIVERS"
	PredicateRequires = "REQUIRES"
	PredicateTrains   = "TRAINS"
)

// actionPredicates maps organizational action verbs to their predicates.
var actionPredicates = map[string]string{
	"provides": PredicateProvides,
	"delivers": PredicateDelivers,
	"requires": PredicateRequires,
	"trains":   PredicateTrains,
}
