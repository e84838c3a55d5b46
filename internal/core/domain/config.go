package domain

// LogFormat selects the log output format.
type LogFormat string

const (
	// LogFormatPretty renders colored human readable lines.
	LogFormatPretty LogFormat = "pretty"
	// LogFormatJSON renders one JSON object per line.
	LogFormatJSON LogFormat = "json"
)

// Config is the resolved project configuration.
type Config struct {
	// Root is the directory holding the config file, or the working directory when there is none.
	Root string
	// StorePath is the absolute path of the store.
	StorePath   string
	LogFormat   LogFormat
	Parallelism int
}
