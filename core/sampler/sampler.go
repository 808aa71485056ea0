// Package sampler draws posterior samples with coordinate-wise slice sampling.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/huangsam/coronacaster/schema"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Defaults mirror the forecast call defaults.
const (
	DefaultTune    = 2000
	DefaultChains  = 20
	DefaultWorkers = 4

	maxStepOut = 100
	maxShrink  = 200
	jitterFrac = 0.1

	jitterDrop     = 50.0
	maxJitterTries = 12
)

// Model is what the sampler needs from a model. model.Spec implements it.
type Model interface {
	Names() []string
	Dim() int
	Scales() []float64
	InitialPoint(x, y []float64) []float64
	LogPosterior(theta, x, y []float64) float64
}

// Options control a sampling run.
type Options struct {
	Draws   int // Retained draws per chain
	Tune    int // Discarded tuning draws per chain
	Chains  int
	Workers int
	Seed    int64
	Logger  logrus.FieldLogger
}

func (o Options) validate() (Options, error) {
	if o.Draws < 1 {
		return o, schema.Configf("draws must be positive, got %d", o.Draws)
	}
	if o.Tune < 0 {
		return o, schema.Configf("tune must not be negative, got %d", o.Tune)
	}
	if o.Chains < 1 {
		return o, schema.Configf("chains must be positive, got %d", o.Chains)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	o.Workers = min(o.Workers, o.Chains)
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	return o, nil
}

// Sample runs Chains independent slice-sampling chains and returns the
// post-tuning draws concatenated chain by chain. Any chain failure fails the
// whole run with schema.ErrSampler and no partial trace.
func Sample(ctx context.Context, m Model, x, y []float64, opts Options) (*schema.PosteriorTrace, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}

	names := append(m.Names(), schema.SigmaName)
	if len(names) != m.Dim() {
		return nil, schema.Configf("model reports %d names for %d dimensions", len(names), m.Dim())
	}

	init := m.InitialPoint(x, y)
	if lp := m.LogPosterior(init, x, y); math.IsInf(lp, 0) || math.IsNaN(lp) {
		return nil, schema.Samplerf("initial point has log density %v", lp)
	}

	log := opts.Logger.WithFields(logrus.Fields{
		"chains": opts.Chains,
		"draws":  opts.Draws,
		"tune":   opts.Tune,
	})
	log.Debug("Starting sampler")
	started := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][][]float64, opts.Chains)
	errs := make([]error, opts.Chains)
	chainCh := make(chan int, opts.Chains)
	var wg sync.WaitGroup

	for range opts.Workers {
		wg.Go(func() {
			for c := range chainCh {
				if runCtx.Err() != nil {
					errs[c] = runCtx.Err()
					continue
				}
				// Each chain writes only its own index.
				ch := newChain(m, names, x, y, c, opts, init)
				draws, err := ch.run(runCtx)
				if err != nil {
					errs[c] = err
					cancel()
					continue
				}
				results[c] = draws
				log.WithField("chain", c).Debug("Chain finished")
			}
		})
	}

	for c := range opts.Chains {
		chainCh <- c
	}
	close(chainCh)
	wg.Wait()

	if err := firstFailure(ctx, errs); err != nil {
		return nil, err
	}

	trace := &schema.PosteriorTrace{
		Names:         names,
		Draws:         make(map[string][]float64, len(names)),
		Chains:        opts.Chains,
		DrawsPerChain: opts.Draws,
	}
	for d, name := range names {
		all := make([]float64, 0, opts.Chains*opts.Draws)
		for _, chain := range results {
			all = append(all, chain[d]...)
		}
		trace.Draws[name] = all
	}

	log.WithField("duration", time.Since(started).Round(time.Millisecond)).Debug("Sampler finished")
	return trace, nil
}

// firstFailure picks the error to report. Cancellations caused by another
// chain failing are skipped in favor of that chain's error.
func firstFailure(ctx context.Context, errs []error) error {
	var cancelled error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			if cancelled == nil {
				cancelled = fmt.Errorf("chain %d: %w", i, err)
			}
			continue
		}
		if errors.Is(err, schema.ErrSampler) {
			return fmt.Errorf("chain %d: %w", i, err)
		}
		return fmt.Errorf("%w: chain %d: %w", schema.ErrSampler, i, err)
	}
	if cancelled != nil {
		return fmt.Errorf("%w: %w", schema.ErrSampler, cancelled)
	}
	return nil
}

type chain struct {
	id    int
	m     Model
	names []string
	x, y  []float64
	rng   *rand.Rand
	opts  Options
	theta []float64
	width []float64
}

func newChain(m Model, names []string, x, y []float64, id int, opts Options, init []float64) *chain {
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(id)))
	scales := m.Scales()
	width := make([]float64, len(scales))
	for i, s := range scales {
		width[i] = math.Max(s, 1e-6)
	}
	return &chain{
		id:    id,
		m:     m,
		names: names,
		x:     x,
		y:     y,
		rng:   rng,
		opts:  opts,
		theta: jitter(m, x, y, rng, init, width, id),
		width: width,
	}
}

// jitter perturbs the shared start so chains begin apart. A perturbation
// that leaves the support or drops the log density by more than jitterDrop
// is halved; chain 0 and starts that never settle keep the shared start.
func jitter(m Model, x, y []float64, rng *rand.Rand, init, width []float64, id int) []float64 {
	if id == 0 {
		return append([]float64(nil), init...)
	}
	base := m.LogPosterior(init, x, y)
	offsets := make([]float64, len(init))
	for i := range offsets {
		offsets[i] = jitterFrac * width[i] * (2*rng.Float64() - 1)
	}
	last := len(init) - 1
	for range maxJitterTries {
		start := append([]float64(nil), init...)
		for i := range start {
			start[i] += offsets[i]
		}
		start[last] = math.Abs(start[last])
		lp := m.LogPosterior(start, x, y)
		if !math.IsInf(lp, 0) && !math.IsNaN(lp) && lp >= base-jitterDrop {
			return start
		}
		floats.Scale(0.5, offsets)
	}
	return append([]float64(nil), init...)
}

func (c *chain) run(ctx context.Context) ([][]float64, error) {
	dim := len(c.theta)
	out := make([][]float64, dim)
	for d := range out {
		out[d] = make([]float64, 0, c.opts.Draws)
	}

	lp := c.m.LogPosterior(c.theta, c.x, c.y)
	total := c.opts.Tune + c.opts.Draws
	for it := range total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tuning := it < c.opts.Tune
		for d := range dim {
			var err error
			lp, err = c.step(d, lp, tuning, it+1)
			if err != nil {
				return nil, fmt.Errorf("iteration %d, %s: %w", it, c.names[d], err)
			}
		}
		if !tuning {
			for d := range dim {
				out[d] = append(out[d], c.theta[d])
			}
		}
	}
	return out, nil
}

// step updates coordinate d with stepping out and shrinkage. During tuning
// the width tracks the running mean of the final bracket size.
func (c *chain) step(d int, lp float64, tuning bool, n int) (float64, error) {
	x0 := c.theta[d]
	logf := func(v float64) float64 {
		c.theta[d] = v
		return c.m.LogPosterior(c.theta, c.x, c.y)
	}

	level := lp - c.rng.ExpFloat64()
	w := c.width[d]
	left := x0 - w*c.rng.Float64()
	right := left + w

	j := int(math.Floor(maxStepOut * c.rng.Float64()))
	k := maxStepOut - 1 - j
	for ; j > 0 && logf(left) > level; j-- {
		left -= w
	}
	for ; k > 0 && logf(right) > level; k-- {
		right += w
	}

	// At very large |lp| the level can round back to lp, so points on the
	// level are accepted and shrinkage always converges onto x0.
	for range maxShrink {
		x1 := left + c.rng.Float64()*(right-left)
		if lp1 := logf(x1); lp1 >= level {
			if tuning {
				c.width[d] = c.width[d]*float64(n-1)/float64(n) + (right-left)/float64(n)
			}
			return lp1, nil
		}
		if x1 < x0 {
			left = x1
		} else {
			right = x1
		}
	}
	c.theta[d] = x0
	return lp, schema.Samplerf("slice shrinkage did not find an accepted point after %d tries", maxShrink)
}
