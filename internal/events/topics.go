package events

// Kafka topics for best-effort lifecycle events consumed by downstream
// systems (billing exports, admin dashboards).
const (
	TopicGenerationEvents = "calliope.generation.events"
	TopicAuditEvents      = "calliope.audit.events"
)

// Lifecycle event types
const (
	EventJobStarted   = "generation.job.started"
	EventJobCompleted = "generation.job.completed"
	EventJobFailed    = "generation.job.failed"
	EventAuditLogged  = "audit.request.logged"
)
