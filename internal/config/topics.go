package config

const (
	// TopicIngestTask is the NSQ topic the Upload Gate publishes an
	// ingest task to when TASK_QUEUE=nsq.
	TopicIngestTask = "orion.ingest.task"
)
