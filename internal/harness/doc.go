// Package harness runs declarative compilation scenarios.
//
// A scenario is a YAML file pairing a query definition with the backend
// it should compile for, plus the schema, stored queries, and wall-clock
// instant the compilation needs. The harness compiles the definition and
// checks the produced SQL two ways: inline assertions inside the scenario
// file, and golden-file comparison of the full compilation snapshot.
//
// Golden files live in testdata/golden and are regenerated with:
//
//	go test ./internal/harness -update
package harness
