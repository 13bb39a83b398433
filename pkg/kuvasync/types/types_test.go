package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero", input: "0", want: 0},
		{name: "binary kilo letter", input: "100K", want: 100 * 1024},
		{name: "lowercase letter", input: "100k", want: 100 * 1024},
		{name: "binary mega explicit", input: "50MiB", want: 50 * 1024 * 1024},
		{name: "giga letter", input: "2G", want: 2 * 1024 * 1024 * 1024},
		{name: "decimal megabytes", input: "1MB", want: 1000 * 1000},
		{name: "surrounding whitespace", input: "  1M  ", want: 1024 * 1024},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-1M", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_ErrorKinds(t *testing.T) {
	_, err := ParseSize("-5G")
	assert.ErrorIs(t, err, ErrNegativeSize)

	_, err = ParseSize("")
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "0 B", FormatSize(-3))
}

func TestRunSummary_Add(t *testing.T) {
	var s RunSummary
	s.Add(FolderReport{Path: "/a/", Fetched: 2, Unchanged: 1, Removed: 1})
	s.Add(FolderReport{Path: "/b/", Failed: 1, Preserved: 3, Warnings: []string{"w"}})
	s.Add(FolderReport{Path: "/c/", Error: "remote api error"})

	assert.Equal(t, 2, s.Fetched)
	assert.Equal(t, 1, s.Unchanged)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Removed)
	assert.Equal(t, 3, s.Preserved)
	assert.Equal(t, 1, s.FolderErrors())
	assert.Equal(t, 1, s.Warnings())
	assert.Len(t, s.Folders, 3)
}

func TestRunSummary_Elapsed(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := RunSummary{Started: start}
	assert.Zero(t, s.Elapsed())

	s.Finished = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, s.Elapsed())
}

func TestFatalSetupError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&FatalSetupError{Op: "bootstrap session", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bootstrap session")

	var setupErr *FatalSetupError
	assert.True(t, errors.As(err, &setupErr))
}

func TestRemoteAPIError_Message(t *testing.T) {
	err := &RemoteAPIError{Folder: "/private/", Message: "forbidden"}
	assert.Equal(t, "remote api error for /private/: forbidden", err.Error())
}
