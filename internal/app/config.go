package app

// Config holds the settings the application runs with.
type Config struct {
	// FilePath locates the HCL computation definition.
	FilePath string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is text or json.
	LogFormat string
}
