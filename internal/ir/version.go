package ir

// Version constants for the document schema and core.
const (
	// SchemaVersion is the compiled program document schema version.
	SchemaVersion = "1"

	// CoreVersion is the weft core version.
	CoreVersion = "0.1.0"
)
