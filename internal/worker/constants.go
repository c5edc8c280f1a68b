package worker

// LogMsgWorkerJobFailed is logged when a worker fails to process a job
const LogMsgWorkerJobFailed = "Worker job failed"

// Log messages for the rental sweep worker
const (
	LogMsgRentalSweepStarting  = "Rental sweep starting"
	LogMsgRentalSweepCompleted = "Rental sweep completed"
	LogMsgRentalSweepFailed    = "Rental sweep failed"
)

// Log messages for the autosave worker
const (
	LogMsgAutosaveCompleted = "Autosave completed"
	LogMsgAutosaveFailed    = "Autosave failed"
)
