package models

import "fmt"

// Stage identifies the pipeline step an error came from
type Stage int

const (
	StageExtract Stage = iota
	StageResolve
	StagePurge
	StageContent
	StageMetadata
	StageSearch
	StageRetention
	StageConfig
)

// String returns the string representation of Stage
func (s Stage) String() string {
	switch s {
	case StageExtract:
		return "Extract"
	case StageResolve:
		return "Resolve"
	case StagePurge:
		return "Purge"
	case StageContent:
		return "Content"
	case StageMetadata:
		return "Metadata"
	case StageSearch:
		return "Search"
	case StageRetention:
		return "Retention"
	case StageConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// IngestError is a fatal fault raised while ingesting a package.
// It is never one of the soft outcomes.
type IngestError struct {
	Stage   Stage
	Package string
	Version string
	Err     error
}

// Error implements the error interface
func (e *IngestError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s %s: %v", e.Stage, e.Package, e.Version, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Stage, e.Err)
}

// Unwrap returns the wrapped error
func (e *IngestError) Unwrap() error {
	return e.Err
}
