package domain

// SchedulingJob 是投递到排课队列中的消息
type SchedulingJob struct {
	JobID    string `json:"jobID"`
	RunID    int64  `json:"runID"`
	NotifyTo string `json:"notifyTo"`
}
