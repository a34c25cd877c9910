// Package result is the append-only result tree of a validation run:
// run -> suite -> configuration -> group -> case -> assertion, plus one
// configuration item per variant under each group.
//
// Pass/fail counters roll up to every ancestor the moment an assertion is
// recorded, so any prefix of a run is itself a consistent partial result.
// Nothing in the tree is ever removed or rewritten.
package result
