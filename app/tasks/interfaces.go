package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the suggestion dispatcher to manage
// background task processing: queue management, worker pool control, and
// shutdown.
// Example usage:
//
//	scheduler := NewScheduler(engine, configRepo, seedConfigs)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewBatchEvaluateTask(engine, nil))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
