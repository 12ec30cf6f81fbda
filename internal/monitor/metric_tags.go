package monitor

type MetricTag string

const (
	SuccessfulQueryDurationTag MetricTag = "successful_queries_duration"
	FailureQueryDurationTag    MetricTag = "failure_queries_duration"

	// PendingDepositsPolledTag counts deposits handed to the rails for funding checks.
	PendingDepositsPolledTag MetricTag = "pending_deposits_polled"
	// DepositSubmissionsTag counts submission attempts by outcome.
	DepositSubmissionsTag MetricTag = "deposit_submissions"
	// SubmissionQueueDepthTag gauges the in-memory submission queue backlog.
	SubmissionQueueDepthTag MetricTag = "submission_queue_depth"
	// HeartbeatAgeSecondsTag gauges the age of this instance's singleton heartbeat.
	HeartbeatAgeSecondsTag MetricTag = "heartbeat_age_seconds"
	// WebhookDeliveriesTag counts status callback deliveries by result.
	WebhookDeliveriesTag MetricTag = "webhook_deliveries"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		SuccessfulQueryDurationTag,
		FailureQueryDurationTag,
		PendingDepositsPolledTag,
		DepositSubmissionsTag,
		SubmissionQueueDepthTag,
		HeartbeatAgeSecondsTag,
		WebhookDeliveriesTag,
	}
}
