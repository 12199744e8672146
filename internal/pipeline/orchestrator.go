// Package pipeline fans a media item's servers out to a bounded worker pool
// and joins their variants.
//
// Each server is one unit of work: resolve, parse, aggregate subtitles.
// A unit that errors, panics or outlives the deadline is recorded as a
// Failure and contributes nothing; the other units are never affected.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/alvarorichard/Gostream/internal/decrypt"
	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/resolver"
	"github.com/alvarorichard/Gostream/internal/util"
)

// ErrOrchestrationTimeout marks units abandoned at the overall deadline
var ErrOrchestrationTimeout = errors.New("orchestration deadline exceeded")

const (
	// DefaultMaxConcurrency bounds the number of servers probed at once
	DefaultMaxConcurrency = 4
	// DefaultDeadline bounds a whole run
	DefaultDeadline = 30 * time.Second
)

// Stage names the step a unit was in when it failed
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageParse     Stage = "parse"
	StageSubtitles Stage = "subtitles"
	StageDeadline  Stage = "deadline"
)

// Failure records why one server contributed no variants
type Failure struct {
	Server string
	Stage  Stage
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", f.Server, f.Stage, f.Err)
}

// Result is the joined outcome of a run
type Result struct {
	RunID    string
	Variants []models.VideoVariant
	Failures []Failure
	Elapsed  time.Duration
}

// Parser expands a raw reference into variants
type Parser interface {
	Parse(ctx context.Context, ref models.RawMediaReference, server string) ([]models.VideoVariant, error)
}

// SubtitleAggregator merges subtitle sources into unique tracks
type SubtitleAggregator interface {
	Aggregate(ctx context.Context, sources []models.SubtitleSource) []models.SubtitleTrack
}

// Options tune a run
type Options struct {
	MaxConcurrency int
	Deadline       time.Duration
	// SubtitleSearch adds an external search source for the media handle
	SubtitleSearch bool
}

// DefaultOptions returns the options used when fields are left zero
func DefaultOptions() Options {
	return Options{
		MaxConcurrency: DefaultMaxConcurrency,
		Deadline:       DefaultDeadline,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.Deadline <= 0 {
		o.Deadline = DefaultDeadline
	}
	return o
}

// Orchestrator runs the per-server pipeline. It keeps no per-run state and
// may be shared between concurrent runs.
type Orchestrator struct {
	resolver   resolver.Resolver
	parser     Parser
	aggregator SubtitleAggregator
	opts       Options
}

// New creates an orchestrator. aggregator may be nil to skip subtitles.
func New(res resolver.Resolver, parser Parser, aggregator SubtitleAggregator, opts Options) *Orchestrator {
	return &Orchestrator{
		resolver:   res,
		parser:     parser,
		aggregator: aggregator,
		opts:       opts.withDefaults(),
	}
}

// Options returns the effective options
func (o *Orchestrator) Options() Options {
	return o.opts
}

// ResolveAll runs every server and returns the variants that succeeded
func ResolveAll(ctx context.Context, servers []models.ServerDescriptor, res resolver.Resolver, parser Parser, aggregator SubtitleAggregator, opts Options) []models.VideoVariant {
	return New(res, parser, aggregator, opts).Run(ctx, models.MediaHandle{}, servers).Variants
}

type unitResult struct {
	index    int
	variants []models.VideoVariant
	failure  *Failure
}

// Run probes every server of handle and joins the results in server order
func (o *Orchestrator) Run(ctx context.Context, handle models.MediaHandle, servers []models.ServerDescriptor) Result {
	runID := uuid.NewString()
	started := time.Now()

	if len(servers) == 0 {
		util.Debug("No servers to resolve", "run", runID, "media", handle.GetDisplayName())
		return Result{RunID: runID, Variants: []models.VideoVariant{}}
	}

	timer := util.StartTimer("pipeline.run")
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(ctx, o.opts.Deadline)
	defer cancel()

	util.Debug("Starting resolution run", "run", runID, "media", handle.GetDisplayName(),
		"servers", len(servers), "concurrency", o.opts.MaxConcurrency, "deadline", o.opts.Deadline)

	p := pool.NewWithResults[unitResult]().WithMaxGoroutines(o.opts.MaxConcurrency)
	for i, server := range servers {
		i, server := i, server
		p.Go(func() unitResult {
			return o.runUnit(ctx, runID, i, handle, server)
		})
	}
	units := p.Wait()

	sort.Slice(units, func(a, b int) bool { return units[a].index < units[b].index })

	result := Result{RunID: runID, Variants: []models.VideoVariant{}}
	for _, u := range units {
		if u.failure != nil {
			result.Failures = append(result.Failures, *u.failure)
			continue
		}
		result.Variants = append(result.Variants, u.variants...)
	}
	result.Elapsed = time.Since(started)

	util.Debug("Resolution run finished", "run", runID, "variants", len(result.Variants),
		"failed", len(result.Failures), "elapsed", result.Elapsed.Round(time.Millisecond))
	return result
}

// runUnit waits for one server's work or the deadline, whichever comes first
func (o *Orchestrator) runUnit(ctx context.Context, runID string, index int, handle models.MediaHandle, server models.ServerDescriptor) unitResult {
	if err := ctx.Err(); err != nil {
		return o.fail(runID, index, server, StageDeadline, deadlineError(err))
	}

	done := make(chan unitResult, 1)
	go func() {
		done <- o.safeProcess(ctx, runID, index, handle, server)
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return o.fail(runID, index, server, StageDeadline, deadlineError(ctx.Err()))
	}
}

func deadlineError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrOrchestrationTimeout
	}
	return err
}

// safeProcess converts a panic anywhere in the unit into a Failure
func (o *Orchestrator) safeProcess(ctx context.Context, runID string, index int, handle models.MediaHandle, server models.ServerDescriptor) unitResult {
	stage := StageResolve
	var result unitResult

	var pc panics.Catcher
	pc.Try(func() {
		result = o.process(ctx, runID, index, handle, server, &stage)
	})
	if r := pc.Recovered(); r != nil {
		return o.fail(runID, index, server, stage, fmt.Errorf("panic: %w", r.AsError()))
	}
	return result
}

func (o *Orchestrator) process(ctx context.Context, runID string, index int, handle models.MediaHandle, server models.ServerDescriptor, stage *Stage) unitResult {
	timer := util.StartTimer("pipeline.unit")
	defer timer.Stop()

	*stage = StageResolve
	ref, err := o.resolver.Resolve(ctx, server)
	if err != nil {
		return o.failUnit(ctx, runID, index, server, StageResolve, err)
	}

	*stage = StageParse
	variants, err := o.parser.Parse(ctx, ref, server.Name)
	if err != nil {
		return o.failUnit(ctx, runID, index, server, StageParse, err)
	}
	if len(variants) == 0 {
		util.Warn("Server produced no variants", "run", runID, "server", server.Name, "url", ref.URL)
		util.PerfCount("pipeline.servers.empty")
		return unitResult{index: index}
	}

	*stage = StageSubtitles
	tracks := o.subtitlesFor(ctx, handle, ref, variants)

	out := make([]models.VideoVariant, 0, len(variants))
	for _, v := range variants {
		if o.aggregator != nil {
			v = v.WithSubtitles(tracks)
		}
		v.SourceServer = server.Name
		v.TrackKind = server.TrackKind
		out = append(out, v)
	}

	util.Debug("Server resolved", "run", runID, "server", server.Name, "kind", ref.Kind,
		"variants", len(out), "subtitles", len(tracks))
	util.PerfCount("pipeline.servers.ok")
	return unitResult{index: index, variants: out}
}

// subtitlesFor gathers reference subtitles, manifest renditions and, when
// enabled, a search for the handle
func (o *Orchestrator) subtitlesFor(ctx context.Context, handle models.MediaHandle, ref models.RawMediaReference, variants []models.VideoVariant) []models.SubtitleTrack {
	if o.aggregator == nil {
		return nil
	}

	sources := append([]models.SubtitleSource(nil), ref.Subtitles...)

	var manifest []models.SubtitleTrack
	for _, v := range variants {
		manifest = append(manifest, v.Subtitles...)
	}
	if len(manifest) > 0 {
		sources = append(sources, models.InlineSubtitles(manifest...))
	}

	if o.opts.SubtitleSearch && handle.ID != "" {
		sources = append(sources, models.SubtitleSource{
			Kind: models.SubtitleSearch,
			Query: models.SubtitleQuery{
				MediaID: handle.ID,
				Season:  handle.Season,
				Episode: handle.Episode,
			},
		})
	}

	return o.aggregator.Aggregate(ctx, sources)
}

// failUnit records err, attributing it to the deadline when the run context
// expired underneath the unit
func (o *Orchestrator) failUnit(ctx context.Context, runID string, index int, server models.ServerDescriptor, stage Stage, err error) unitResult {
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return o.fail(runID, index, server, StageDeadline, deadlineError(ctxErr))
	}
	return o.fail(runID, index, server, stage, err)
}

func (o *Orchestrator) fail(runID string, index int, server models.ServerDescriptor, stage Stage, err error) unitResult {
	switch {
	case decrypt.IsOracleDown(err):
		util.Error("Decryption oracle unavailable", "run", runID, "server", server.Name, "error", err)
	case errors.Is(err, ErrOrchestrationTimeout):
		util.Warn("Server abandoned at deadline", "run", runID, "server", server.Name)
	default:
		util.Warn("Server failed", "run", runID, "server", server.Name, "stage", stage, "error", err)
	}
	util.PerfCount("pipeline.servers.failed")

	return unitResult{
		index:   index,
		failure: &Failure{Server: server.Name, Stage: stage, Err: err},
	}
}
