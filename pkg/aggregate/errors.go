package aggregate

// ConfigError indicates an invalid tree configuration. It is returned from
// NewTree and Merge, always before any ingestion state is touched.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "aggregate config: " + e.Field + ": " + e.Message
}

// MalformedRecordError indicates a single record failed validation. The
// record is rejected without corrupting previously-ingested state; callers
// typically count these and continue the pass.
type MalformedRecordError struct {
	Key    string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return "malformed record " + e.Key + ": " + e.Reason
}
