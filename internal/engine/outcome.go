package engine

// Status is the terminal state of one archive.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome is the single terminal result recorded for an archive. Files and
// Bytes are set for successes, Class and Reason for failures, Reason alone
// for skips.
type Outcome struct {
	Status Status
	Files  int
	Bytes  int64
	Class  FailureClass
	Reason string
}

func Succeeded(files int, bytes int64) Outcome {
	return Outcome{Status: StatusSuccess, Files: files, Bytes: bytes}
}

func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Class: ClassOf(err), Reason: err.Error()}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}
