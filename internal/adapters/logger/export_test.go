// export_test.go exports private functions for white-box testing.
package logger

// ErrorEntry exposes one formatted level of an error chain.
type ErrorEntry = errorEntry

// ExportErrorFormatting exports the private error formatting functions for testing.
var (
	CollectErrorEntries = collectErrorEntries
	FormatErrorEntries  = formatErrorEntries
)
