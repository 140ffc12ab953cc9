package metrics

// NoopMetricsRecorder discards everything.
type NoopMetricsRecorder struct{}

func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

func (*NoopMetricsRecorder) RecordAuthStep(string, bool)      {}
func (*NoopMetricsRecorder) RecordIdentityFallback(string)    {}
func (*NoopMetricsRecorder) RecordInviteCreated(string, bool) {}
func (*NoopMetricsRecorder) RecordStoreError(string)          {}
