package enums

type (
	OutboxAggregateType string
	OutboxEventType     string
	// OutboxState tracks a row from insert to publish or dead letter.
	OutboxState string
	// OutboxDeadReason records why a row stopped being retried.
	OutboxDeadReason string
)

const (
	AggregateBusiness OutboxAggregateType = "business"

	EventBusinessSubmitted     OutboxEventType = "business_submitted"
	EventBusinessStatusChanged OutboxEventType = "business_status_changed"

	OutboxStatePending   OutboxState = "pending"
	OutboxStatePublished OutboxState = "published"
	OutboxStateDead      OutboxState = "dead"

	DeadReasonMaxAttempts  OutboxDeadReason = "max_attempts"
	DeadReasonNonRetryable OutboxDeadReason = "non_retryable"
)

var (
	aggregateTypes = set[OutboxAggregateType]{AggregateBusiness}
	eventTypes     = set[OutboxEventType]{EventBusinessSubmitted, EventBusinessStatusChanged}
	outboxStates   = set[OutboxState]{OutboxStatePending, OutboxStatePublished, OutboxStateDead}
	deadReasons    = set[OutboxDeadReason]{DeadReasonMaxAttempts, DeadReasonNonRetryable}
)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }
func (e OutboxEventType) IsValid() bool     { return eventTypes.has(e) }
func (s OutboxState) IsValid() bool         { return outboxStates.has(s) }
func (r OutboxDeadReason) IsValid() bool    { return deadReasons.has(r) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse("event type", value)
}
