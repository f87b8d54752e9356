// Package engine interprets a compiled program against the state store.
//
// The Evaluator walks expression trees with degrade-to-undefined read
// semantics; the Executor runs action step lists in order, including the
// asynchronous delay/interval/fetch steps, whose continuations are posted
// back onto the single-writer Loop. The Dispatcher applies debounce or
// throttle admission control in front of action dispatch.
//
// All state mutation happens on one logical thread. Timers and fetches
// settle on their own goroutines but only ever hand a closure to the loop;
// they never touch the store directly.
package engine
