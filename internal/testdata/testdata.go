// Package testdata embeds a small threadtime capture shared by package tests.
package testdata

import (
	_ "embed"
	"strings"
)

//go:embed threadtime.log
var threadtime string

// Threadtime returns the capture as it would appear on disk.
func Threadtime() string {
	return threadtime
}

// ThreadtimeLines returns the capture split into lines, without the trailing
// empty element.
func ThreadtimeLines() []string {
	return strings.Split(strings.TrimRight(threadtime, "\n"), "\n")
}

// Expected shape of the capture once assembled with merging enabled.
const (
	// banner orphan, ActivityManager, NetworkClient, merged AndroidRuntime
	// crash (3 headers + 2 stack lines), chatty, WindowManager,
	// Choreographer, libc.
	ThreadtimeRecords = 8
	// Same capture without same-timestamp merging: the crash stays three
	// records.
	ThreadtimeRecordsUnmerged = 10
)
