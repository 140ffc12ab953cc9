package metrics

// Recorder is the set of counters the service reports.
type Recorder interface {
	// RecordAuthStep counts a login, callback, refresh or logout outcome.
	RecordAuthStep(step string, success bool)
	// RecordIdentityFallback counts an identity source that failed and was
	// skipped over.
	RecordIdentityFallback(source string)
	RecordInviteCreated(strategy string, success bool)
	RecordStoreError(op string)
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
