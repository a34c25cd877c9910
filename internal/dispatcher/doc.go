// Package dispatcher walks a bound catalog and drives category hooks through
// the suite -> configuration -> group -> case lifecycle, recording every
// outcome in a result.Run.
//
// Execution is strictly sequential. Failures stay local to the scope that
// produced them: a failed assertion does not stop its case, a failed case
// does not stop its siblings, and a failed group setup only skips that
// group. The one fatal condition is a testctx.StructuralViolation, which
// aborts the run and discards its results.
package dispatcher
