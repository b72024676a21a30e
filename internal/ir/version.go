package ir

// Version constants for persisted formats and the processor.
const (
	// FormatVersion is the registry record format version.
	FormatVersion = "1"

	// EngineVersion is the processor version recorded in log entries.
	EngineVersion = "0.1.0"
)
