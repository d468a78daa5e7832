//go:build !debug

package scheduler

// debugLog is compiled out unless built with -tags debug
func debugLog(format string, args ...interface{}) {}
