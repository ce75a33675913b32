// Package stdx holds tiny helpers for initialization code.
package stdx

// Must returns v, panicking when err is non-nil. Reserved for setup paths
// where a failure means the process cannot start anyway.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
