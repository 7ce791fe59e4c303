package model

// StatusKind is the lifecycle position of one model tier.
type StatusKind string

const (
	StatusNotDownloaded StatusKind = "not_downloaded"
	StatusDownloading   StatusKind = "downloading"
	StatusDownloaded    StatusKind = "downloaded"
	StatusActive        StatusKind = "active"
)

// Status pairs the kind with a download fraction, meaningful only while
// downloading.
type Status struct {
	Kind     StatusKind
	Fraction float64
}

// deriveStatus recomputes status from observable facts. Status is never
// stored; a crash mid-download therefore resumes as not-downloaded rather
// than as a stuck "downloading" record.
func deriveStatus(downloading bool, fraction float64, onDisk, active bool) Status {
	switch {
	case downloading:
		return Status{Kind: StatusDownloading, Fraction: fraction}
	case !onDisk:
		return Status{Kind: StatusNotDownloaded}
	case active:
		return Status{Kind: StatusActive}
	default:
		return Status{Kind: StatusDownloaded}
	}
}
