// Package common holds small, dependency-free helpers shared by the
// buffer pool, disk scheduler, and B+ tree packages.
package common

import "fmt"

// PanicIfErr turns an unexpected error into a fatal invariant violation.
// Use it only for conditions that represent bugs, not recoverable
// outcomes — recoverable outcomes use typed bool/ok returns instead.
func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Assert panics with a formatted diagnostic if cond is false. It is the
// idiomatic stand-in for the reference engine's BUSTUB_ASSERT: invariant
// violations abort the process rather than propagating as errors.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Contains tells whether arr contains x.
func Contains[T comparable](arr []T, x T) bool {
	for _, n := range arr {
		if x == n {
			return true
		}
	}
	return false
}
