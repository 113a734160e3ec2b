package metrics

// Session holds the metrics a session reports.
type Session struct {
	registry *Registry

	EditsTotal           *Counter
	NoopEditsTotal       *Counter
	FeedbackIgnoredTotal *Counter
	TransformedTotal     *Counter
	AppliedTotal         *Counter
	StaleTotal           *Counter
	FailedTotal          *Counter
	PanicsTotal          *Counter

	QueueDepth *Gauge

	ReconcileSeconds *Histogram
}

// NewSession registers the session metrics in registry, or in a new
// "fieldsync" registry when registry is nil.
func NewSession(registry *Registry) *Session {
	if registry == nil {
		registry = NewRegistry("fieldsync")
	}
	return &Session{
		registry: registry,

		EditsTotal:           registry.Counter("edits_total", "User edits submitted to the pipeline"),
		NoopEditsTotal:       registry.Counter("noop_edits_total", "Change notifications with unchanged content"),
		FeedbackIgnoredTotal: registry.Counter("feedback_ignored_total", "Change notifications caused by reconciliation"),
		TransformedTotal:     registry.Counter("transformed_total", "States delivered by the transform pipeline"),
		AppliedTotal:         registry.Counter("applied_total", "Transformed states written to the field"),
		StaleTotal:           registry.Counter("stale_total", "Transformed states discarded as older than the field"),
		FailedTotal:          registry.Counter("failed_total", "Reconciliations that returned an error"),
		PanicsTotal:          registry.Counter("task_panics_total", "Session tasks that panicked"),

		QueueDepth: registry.Gauge("queue_depth", "States waiting in the pipeline"),

		ReconcileSeconds: registry.Histogram("reconcile_seconds", "Time spent reconciling one transformed state", DurationBuckets),
	}
}

// Registry returns the registry the metrics live in.
func (m *Session) Registry() *Registry {
	return m.registry
}
