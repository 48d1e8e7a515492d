// Package typeql is a small typed builder for the graph engine's
// pattern-matching query language (Graql dialect).
//
// Queries are assembled from statements and only rendered to text by Build,
// which validates every label, variable and identifier and escapes every
// literal. Free-form strings never reach the query text unquoted.
//
//	q := typeql.Match(
//		typeql.Var("x").Isa("Threat-Actor").Has("name", typeql.String(`APT "28"`)),
//	).Get("x").Sort("o", typeql.Asc).Offset(0).Limit(25)
//	text, err := q.Build()
//	// match $x isa Threat-Actor, has name "APT \"28\""; get $x; sort $o asc; offset 0; limit 25;
package typeql
