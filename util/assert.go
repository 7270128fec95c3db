package util

import "fmt"

func Ptr[T any](v T) *T {
	return &v
}

// AssertNoError panics on errors that can only come from a broken invariant, such as a
// failed write into a hash.Hash or bytes.Buffer.
func AssertNoError(err error) {
	if err != nil {
		panic(fmt.Sprintf("unexpected error: %s", err.Error()))
	}
}
