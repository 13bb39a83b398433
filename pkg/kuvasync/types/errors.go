package types

import (
	"errors"
	"fmt"
)

// ErrInvalidSize indicates that a size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// FatalSetupError aborts a run before any local mutation: a missing mirror
// root, a failed session bootstrap, or an unusable folder tree.
type FatalSetupError struct {
	Op  string
	Err error
}

func (e *FatalSetupError) Error() string {
	return fmt.Sprintf("setup failed: %s: %v", e.Op, e.Err)
}

func (e *FatalSetupError) Unwrap() error {
	return e.Err
}

// RemoteAPIError is an application-level failure reported by the gallery
// (a listing with status 0). It is scoped to a single folder.
type RemoteAPIError struct {
	Folder  string
	Message string
}

func (e *RemoteAPIError) Error() string {
	if e.Folder == "" {
		return fmt.Sprintf("remote api error: %s", e.Message)
	}
	return fmt.Sprintf("remote api error for %s: %s", e.Folder, e.Message)
}

// FetchError is a non-success HTTP status on a content download.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// ConsistencyWarning reports a listed file that could not be matched
// against local disk: its content file or its sidecar is missing.
type ConsistencyWarning struct {
	Folder  string
	Name    string
	Missing string
}

func (w ConsistencyWarning) Error() string {
	return fmt.Sprintf("%s%s: %s missing after sync", w.Folder, w.Name, w.Missing)
}

// String implements fmt.Stringer.
func (w ConsistencyWarning) String() string {
	return w.Error()
}
