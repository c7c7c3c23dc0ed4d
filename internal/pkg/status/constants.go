package status

import "strings"

// Status represents transcription job status
type Status int

const (
	// Running - job is queued or in progress
	Running Status = iota + 1
	// Completed - final success step
	Completed
	// Failed - final failure step
	Failed
)

var (
	statusName = map[Status]string{Running: "RUNNING", Completed: "COMPLETED", Failed: "FAILED"}
	nameStatus = map[string]Status{"RUNNING": Running, "COMPLETED": Completed, "FAILED": Failed,
		"QUEUED": Running, "IN_PROGRESS": Running}
)

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string, returns 0 on unknown status
func From(st string) Status {
	return nameStatus[strings.ToUpper(st)]
}

// Final returns true if no more status changes are expected
func (st Status) Final() bool {
	return st == Completed || st == Failed
}
