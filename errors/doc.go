// Package errors provides the structured failure taxonomy for the binding.
//
// Every fallible operation returns an *Error carrying a Phase (where in the
// binding it happened) and a Code (what went wrong). Runtime-originated codes
// map one to one onto the interpreter's own error enum and are propagated
// without reinterpretation; binding-originated codes cover failures the
// interpreter never sees, such as malformed identifiers or use of a closed
// state.
//
// Use the Err* sentinels with the standard errors.Is to branch on a code
// regardless of phase:
//
//	if errors.Is(err, yaslerrors.ErrSyntax) {
//	    // prompt for more input
//	}
package errors
