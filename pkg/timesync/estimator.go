package timesync

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	defaultSamples = 3
	defaultTimeout = 2 * time.Second
)

// ProbeFunc performs one round trip to the server and returns the server's
// clock reading taken while the probe was in flight.
type ProbeFunc func(ctx context.Context) (time.Time, error)

// Estimate is the result of one calibration run. Offset is server time minus
// local time. A degraded estimate means every probe failed or timed out and
// the offset defaulted to zero.
type Estimate struct {
	Offset   time.Duration
	Samples  int
	Degraded bool
}

// Estimator computes the offset between the local clock and the server clock
// from round-trip probes. The midpoint of each round trip is used as the
// local reference, which cancels one-way latency as long as the path is
// roughly symmetric. Estimates are per connection and must be recomputed
// after a reconnect.
type Estimator struct {
	probe   ProbeFunc
	clock   clockwork.Clock
	samples int
	timeout time.Duration
}

type Option func(*Estimator)

func WithClock(clock clockwork.Clock) Option {
	return func(e *Estimator) { e.clock = clock }
}

func WithSamples(n int) Option {
	return func(e *Estimator) { e.samples = n }
}

func WithTimeout(d time.Duration) Option {
	return func(e *Estimator) { e.timeout = d }
}

func NewEstimator(probe ProbeFunc, opts ...Option) *Estimator {
	e := &Estimator{
		probe:   probe,
		clock:   clockwork.NewRealClock(),
		samples: defaultSamples,
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Estimate runs the configured number of probes and averages the per-probe
// offsets. Failed probes are skipped; if every probe fails the estimate
// degrades to a zero offset instead of returning an error, since reduced
// precision sync is preferable to no sync at all.
func (e *Estimator) Estimate(ctx context.Context) Estimate {
	var (
		total time.Duration
		n     int
	)

	for i := 0; i < e.samples; i++ {
		offset, err := e.sample(ctx)
		if err != nil {
			continue
		}

		total += offset
		n++
	}

	if n == 0 {
		return Estimate{Degraded: true}
	}

	return Estimate{
		Offset:  total / time.Duration(n),
		Samples: n,
	}
}

func (e *Estimator) sample(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	t0 := e.clock.Now()
	serverTime, err := e.probe(ctx)
	if err != nil {
		return 0, err
	}
	t2 := e.clock.Now()

	// offset = serverTime - (t0+t2)/2
	midpoint := t0.Add(t2.Sub(t0) / 2)

	return serverTime.Sub(midpoint), nil
}
