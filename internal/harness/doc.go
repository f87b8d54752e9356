// Package harness runs declarative test scenarios against the runtime.
//
// A scenario is a YAML file naming a program document, a sequence of
// steps (dispatch an action, advance virtual time), and assertions over
// the final state and the mutation trace. Scenarios execute on the fake
// scheduler with fixed token generators, so timer and debounce behavior
// is exact and traces are reproducible byte for byte. Golden trace
// comparison uses goldie; regenerate with:
//
//	go test ./internal/harness -update
package harness
