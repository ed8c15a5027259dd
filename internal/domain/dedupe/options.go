package dedupe

// Option configures a RingDeduper.
type Option func(*RingDeduper)

// WithMaxSize sets how many ids are remembered. Zero or less means unbounded.
func WithMaxSize(n int) Option {
	return func(d *RingDeduper) {
		d.maxSize = n
	}
}
