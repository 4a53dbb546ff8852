package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithState seeds the store with st instead of an empty state.
func WithState(st *State) Option {
	return func(s *MemoryStore) {
		if st != nil {
			s.state = st.Clone()
		}
	}
}

// WithMetricsUpdateInterval sets how often collection sizes are exported.
// Zero keeps the export on every Update only.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
