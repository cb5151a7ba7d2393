package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithWindow sets how many keys are remembered. A value <= 0 disables eviction.
func WithWindow(n int) Option {
	return func(d *inMemoryDeduper) {
		d.window = n
	}
}
