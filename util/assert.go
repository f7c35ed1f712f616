package util

import "fmt"

func AssertNoError(err error) {
	if err != nil {
		panic(err)
	}
}

// Assertf checks an invariant that must hold unless the caller violated an
// API contract. Failures are not recoverable and abort immediately.
func Assertf(condition bool, format string, args ...any) {
	if !condition {
		panic(fmt.Sprintf(format, args...))
	}
}
