package task

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"svmmapper/internal/compute"
	"svmmapper/internal/metrics"
	"svmmapper/internal/normalize"
	"svmmapper/internal/store"
)

const maxLineBytes = 1024 * 1024

// Invoker runs the compute binary.
type Invoker interface {
	Run(ctx context.Context, call compute.Invocation) error
}

// Pipeline drives task identifiers one at a time through
// check → stage → fetch → normalize → compute → publish → cleanup.
type Pipeline struct {
	opts    Options
	gateway store.Gateway
	invoker Invoker
	metrics *metrics.Metrics

	mu    sync.RWMutex
	stats Summary
}

func NewPipeline(opts Options, gateway store.Gateway, invoker Invoker, m *metrics.Metrics) *Pipeline {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = normalize.DefaultMaxDimension
	}
	return &Pipeline{
		opts:    opts,
		gateway: gateway,
		invoker: invoker,
		metrics: m,
		stats:   Summary{StartedAt: time.Now()},
	}
}

// Stats returns a snapshot of the run counters. Safe for concurrent use.
func (p *Pipeline) Stats() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Run consumes newline-separated task identifiers from in, strictly in order.
// Every completed or skipped identifier is echoed to ack exactly once; failed
// ones are logged and left out. Run stops at the first fatal error, at the
// first failed write to ack, or between tasks once ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, in io.Reader, ack io.Writer) (Summary, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return p.Stats(), err
		}
		taskID := strings.TrimSpace(scanner.Text())
		if taskID == "" {
			continue
		}

		outcome, err := p.Process(ctx, taskID)
		if err != nil {
			if IsFatal(err) {
				log.Error().Str("task", taskID).Err(err).Msg("aborting run")
				return p.Stats(), err
			}
			log.Warn().Str("task", taskID).Err(err).Msg("task skipped after failure")
			continue
		}
		log.Debug().Str("task", taskID).Str("outcome", string(outcome)).Msg("acknowledging")
		if _, err := fmt.Fprintln(ack, taskID); err != nil {
			return p.Stats(), fmt.Errorf("write acknowledgment: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return p.Stats(), fmt.Errorf("read task ids: %w", err)
	}
	return p.Stats(), nil
}

func (p *Pipeline) begin(taskID string) {
	p.mu.Lock()
	p.stats.Received++
	p.stats.Current = taskID
	p.mu.Unlock()
}

func (p *Pipeline) finish(taskID string, outcome Outcome) {
	p.mu.Lock()
	switch outcome {
	case OutcomeCompleted:
		p.stats.Completed++
	case OutcomeSkipped:
		p.stats.Skipped++
	default:
		p.stats.Failed++
	}
	p.stats.Current = ""
	p.stats.LastTask = taskID
	p.mu.Unlock()
	p.metrics.TaskFinished(string(outcome))
}
