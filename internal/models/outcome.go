package models

// Outcome is the terminal result of one ingestion attempt
type Outcome int

const (
	// Success means the package is stored, committed and indexed
	Success Outcome = iota + 1
	// InvalidPackage means the upload could not be parsed
	InvalidPackage
	// PackageAlreadyExists means the version exists and may not be replaced
	PackageAlreadyExists
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case InvalidPackage:
		return "InvalidPackage"
	case PackageAlreadyExists:
		return "PackageAlreadyExists"
	default:
		return "Unknown"
	}
}
