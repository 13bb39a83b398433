package mirror

// Recorder receives engine events. Implementations must be safe for
// concurrent use when the engine runs folders in parallel.
type Recorder interface {
	FileFetched(path, fingerprint string, size int64)
	FileUnchanged(path string)
	FileFailed(path string, err error)
	FileRemoved(path string)
	FolderRenamed(from, to string)
	FolderPruned(path string)
	FolderFailed(path string, err error)
	Warning(path, msg string)
}

// NopRecorder ignores every event. Embed it to implement only some methods.
type NopRecorder struct{}

func (NopRecorder) FileFetched(string, string, int64) {}
func (NopRecorder) FileUnchanged(string)              {}
func (NopRecorder) FileFailed(string, error)          {}
func (NopRecorder) FileRemoved(string)                {}
func (NopRecorder) FolderRenamed(string, string)      {}
func (NopRecorder) FolderPruned(string)               {}
func (NopRecorder) FolderFailed(string, error)        {}
func (NopRecorder) Warning(string, string)            {}

// Recorders fans events out to several recorders in order.
type Recorders []Recorder

func (rs Recorders) FileFetched(path, fingerprint string, size int64) {
	for _, r := range rs {
		r.FileFetched(path, fingerprint, size)
	}
}

func (rs Recorders) FileUnchanged(path string) {
	for _, r := range rs {
		r.FileUnchanged(path)
	}
}

func (rs Recorders) FileFailed(path string, err error) {
	for _, r := range rs {
		r.FileFailed(path, err)
	}
}

func (rs Recorders) FileRemoved(path string) {
	for _, r := range rs {
		r.FileRemoved(path)
	}
}

func (rs Recorders) FolderRenamed(from, to string) {
	for _, r := range rs {
		r.FolderRenamed(from, to)
	}
}

func (rs Recorders) FolderPruned(path string) {
	for _, r := range rs {
		r.FolderPruned(path)
	}
}

func (rs Recorders) FolderFailed(path string, err error) {
	for _, r := range rs {
		r.FolderFailed(path, err)
	}
}

func (rs Recorders) Warning(path, msg string) {
	for _, r := range rs {
		r.Warning(path, msg)
	}
}
