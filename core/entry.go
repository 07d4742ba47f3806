package core

// Entry is one key/metadata pair returned by index scans. Meta points at
// the live record owned by the index; callers that hold entries across
// later mutations should Clone the metadata.
type Entry struct {
	Key  string
	Meta *FileMetadata
}
