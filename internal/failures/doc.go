// Package failures defines the closed failure taxonomy used across footerscan.
//
// Every fallible pipeline operation reports problems as a *Failure tagged with
// a Kind. Each kind carries the typed context needed to diagnose it (a file
// path, a service URL, an elapsed duration, a configuration detail), and
// constructors reject empty required context so broken diagnostics are caught
// at the point of creation rather than at the point of logging.
//
// Classification of failures into error codes and exit statuses is not this
// package's concern; see internal/classify.
package failures
