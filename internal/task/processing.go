package task

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"svmmapper/internal/compute"
	fileutil "svmmapper/internal/file"
	"svmmapper/internal/normalize"
	"svmmapper/internal/store"
)

// Process runs a single task identifier through the pipeline. A task whose
// output already exists in the sink is skipped without touching the source.
// Any returned error marks the task as failed; IsFatal tells whether the run
// must stop. Staged and compute output files are removed on every path.
func (p *Pipeline) Process(ctx context.Context, taskID string) (outcome Outcome, err error) {
	p.begin(taskID)
	defer func() { p.finish(taskID, outcome) }()

	logger := log.With().Str("task", taskID).Logger()
	outputKey := p.opts.Mapper.OutputKey(taskID)

	stagedPath, err := p.opts.Mapper.StagedPath(p.opts.StagingRoot, taskID)
	if err != nil {
		return OutcomeFailed, &StepError{Step: StepStage, TaskID: taskID, Err: err}
	}

	done, err := p.checkDone(ctx, outputKey)
	if err != nil {
		return OutcomeFailed, &StepError{Step: StepCheckDone, TaskID: taskID, Err: err}
	}
	if done {
		logger.Debug().Str("output_key", outputKey).Msg("already processed")
		return OutcomeSkipped, nil
	}

	outputPath := p.opts.Mapper.ComputeOutputPath(stagedPath)
	defer p.cleanup(logger, stagedPath, outputPath)

	if err := p.step(StepStage, func() error { return stage(stagedPath, outputPath) }); err != nil {
		return OutcomeFailed, &StepError{Step: StepStage, TaskID: taskID, Err: err}
	}

	if err := p.step(StepFetch, func() error {
		return p.gateway.Fetch(ctx, store.Source, taskID, stagedPath)
	}); err != nil {
		return OutcomeFailed, &StepError{Step: StepFetch, TaskID: taskID, Err: err}
	}
	logger.Info().Str("input", stagedPath).Str("output", outputPath).Msg("staged")

	var res normalize.Result
	if err := p.step(StepNormalize, func() error {
		var err error
		res, err = normalize.Normalize(stagedPath, p.opts.MaxDimension)
		return err
	}); err != nil {
		return OutcomeFailed, &StepError{Step: StepNormalize, TaskID: taskID, Err: err}
	}
	if res.Resized {
		p.metrics.ImageResized()
		logger.Debug().Int("width", res.Width).Int("height", res.Height).Msg("image downscaled")
	}

	if err := p.step(StepCompute, func() error {
		return p.invoker.Run(ctx, compute.Invocation{
			Executable: p.opts.Executable,
			Input:      stagedPath,
			Model:      p.opts.ModelPath,
			Output:     outputPath,
			Env:        p.opts.Env,
		})
	}); err != nil {
		return OutcomeFailed, &StepError{Step: StepCompute, TaskID: taskID, Err: fmt.Errorf("%w: %w", ErrComputeFailed, err)}
	}

	// The child has run to completion; a cancelled run still publishes its result.
	if err := p.step(StepPublish, func() error {
		return p.gateway.Put(context.WithoutCancel(ctx), store.Sink, outputKey, outputPath)
	}); err != nil {
		return OutcomeFailed, &StepError{Step: StepPublish, TaskID: taskID, Err: err}
	}

	logger.Info().Str("output_key", outputKey).Msg("done")
	return OutcomeCompleted, nil
}

func (p *Pipeline) checkDone(ctx context.Context, outputKey string) (bool, error) {
	var done bool
	err := p.step(StepCheckDone, func() error {
		var err error
		done, err = p.gateway.Exists(ctx, store.Sink, outputKey)
		return err
	})
	return done, err
}

func (p *Pipeline) step(s Step, fn func() error) error {
	started := time.Now()
	err := fn()
	p.metrics.ObserveStep(string(s), started)
	return err
}

// stage prepares the directory for the staged file and clears any compute
// output left behind by an earlier attempt, so that a fresh file after
// compute is proof the binary wrote it.
func stage(stagedPath, outputPath string) error {
	state, err := fileutil.EnsureParent(stagedPath)
	if err != nil {
		return err
	}
	log.Debug().Str("path", stagedPath).Stringer("dir", state).Msg("staging directory ready")
	return fileutil.RemoveIfExists(outputPath)
}

func (p *Pipeline) cleanup(logger zerolog.Logger, paths ...string) {
	started := time.Now()
	for _, path := range paths {
		if err := fileutil.RemoveIfExists(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("cleanup failed")
		}
	}
	p.metrics.ObserveStep(string(StepCleanup), started)
}
