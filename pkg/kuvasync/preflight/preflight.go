// Package preflight checks the local mirror root before a run starts.
package preflight

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// ErrNotDirectory is returned when the mirror root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Result reports what the checks found.
type Result struct {
	Root string

	// FreeBytes is the space available to the current user, or -1 when it
	// could not be determined.
	FreeBytes int64

	// LowSpace is set when FreeBytes is below the requested minimum.
	LowSpace bool
}

// freeSpace is replaced in tests.
var freeSpace = diskFree

// Check verifies that root exists and is a directory, and measures free
// space when minFree is positive. A missing or unusable root is returned
// as *types.FatalSetupError. Low space is reported, not returned.
func Check(root string, minFree int64) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &types.FatalSetupError{Op: "check mirror root", Err: err}
	}
	if !info.IsDir() {
		return nil, &types.FatalSetupError{
			Op:  "check mirror root",
			Err: fmt.Errorf("%s: %w", root, ErrNotDirectory),
		}
	}

	res := &Result{Root: root, FreeBytes: -1}
	if minFree <= 0 {
		return res, nil
	}

	free, err := freeSpace(root)
	if err != nil {
		return res, nil
	}
	res.FreeBytes = free
	res.LowSpace = free < minFree
	return res, nil
}
