package model

// Phase is the stage of a model activation reported over the progress
// channel.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseLoading     Phase = "loading"
	PhaseWarming     Phase = "warming"
)

// Progress is one event on a download's progress channel. Exactly one
// terminal event is delivered per download: Done set, or Err non-nil. The
// channel closes after the terminal event.
type Progress struct {
	ModelID    string
	Phase      Phase
	Fraction   float64
	Bytes      int64
	TotalBytes int64
	Done       bool
	Err        error
}
