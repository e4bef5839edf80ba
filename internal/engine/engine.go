package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/dejo1307/cs2luadoc/internal/builder"
	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/emitter"
	"github.com/dejo1307/cs2luadoc/internal/filter"
	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/luatype"
	"github.com/dejo1307/cs2luadoc/internal/model"
	"github.com/dejo1307/cs2luadoc/internal/symbols"
)

// ErrLoad marks failures to obtain compiled units. Nothing is written when
// loading fails.
var ErrLoad = errors.New("loading symbols failed")

const loadHint = "check that the solution path points to a .sln, .csproj, source directory or symbol dump"

// Result summarizes one generation run.
type Result struct {
	Solution  string
	OutputDir string
	Provider  string
	Units     int
	Classes   int
	Emitted   int
	Files     []string
	Duration  time.Duration
}

// Engine orchestrates the pipeline: load -> build -> render -> write.
type Engine struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	providers *symbols.Registry
	version   string
	progress  func(done, total int)

	run sync.Mutex // serializes Generate

	mu        sync.RWMutex
	project   *model.ProjectMetaData
	hierarchy *model.Hierarchy
	result    *Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithVersion sets the version stamped into generated files.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// WithProgress registers a callback invoked as namespaces are rendered.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates a new Engine with the given config.
// Providers must be registered after creation.
func New(cfg *config.Config, logger *zap.SugaredLogger, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("engine"),
		providers: symbols.NewRegistry(),
		version:   "dev",
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RegisterProvider adds a symbol provider. Providers are tried in
// registration order when none is configured.
func (e *Engine) RegisterProvider(p symbols.Provider) {
	e.providers.Register(p)
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Project returns the last built project, or nil.
func (e *Engine) Project() *model.ProjectMetaData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.project
}

// Hierarchy returns the inheritance index of the last built project, or nil.
func (e *Engine) Hierarchy() *model.Hierarchy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hierarchy
}

// LastResult returns the summary of the last successful run, or nil.
func (e *Engine) LastResult() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.result
}

// provider picks the configured provider or the first one that detects path.
func (e *Engine) provider(path string) (symbols.Provider, error) {
	if name := e.cfg.Provider; name != "" {
		p := e.providers.Get(name)
		if p == nil {
			return nil, errors.WithHint(errors.Mark(errors.Newf("unknown provider %q", name), ErrLoad),
				"valid providers are \"csharp\" and \"dump\"")
		}
		return p, nil
	}
	p, err := e.providers.Detect(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "detecting provider for %s", path), ErrLoad)
	}
	if p == nil {
		return nil, errors.WithHint(errors.Mark(errors.Newf("no provider understands %s", path), ErrLoad), loadHint)
	}
	return p, nil
}

// Load returns the compiled units at path that pass the assembly filters.
func (e *Engine) Load(ctx context.Context, path string) ([]*symbols.Unit, symbols.Provider, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, errors.WithHint(errors.Mark(errors.Wrapf(err, "opening %s", path), ErrLoad), loadHint)
	}
	p, err := e.provider(path)
	if err != nil {
		return nil, nil, err
	}

	unitFilter, err := symbols.NewUnitFilter(e.cfg.Assemblies.Include, e.cfg.Assemblies.Exclude)
	if err != nil {
		return nil, nil, errors.Mark(err, ErrLoad)
	}

	e.logger.Infow("loading symbols", "path", path, "provider", p.Name())
	units, err := p.Load(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, nil, err
		}
		return nil, nil, errors.WithHint(
			errors.Mark(errors.Wrapf(err, "loading %s with provider %s", path, p.Name()), ErrLoad), loadHint)
	}

	kept := unitFilter.Apply(units)
	e.logger.Infow("loaded units", "units", len(units), "kept", len(kept))
	for _, u := range units {
		if !unitFilter.Keep(u.Name) {
			e.logger.Debugw("skipping unit", "unit", u.Name)
		}
	}
	return kept, p, nil
}

// Build turns units into a project model and makes it the current project.
func (e *Engine) Build(ctx context.Context, units []*symbols.Unit) (*model.ProjectMetaData, error) {
	project, err := builder.New(e.logger).Build(ctx, units)
	if err != nil {
		return nil, err
	}
	hierarchy := model.NewHierarchy(project)
	for _, cycle := range hierarchy.Cycles() {
		e.logger.Warnw("inheritance cycle, emitted base annotations will not resolve", "cycle", cycle.String())
	}

	e.mu.Lock()
	e.project = project
	e.hierarchy = hierarchy
	e.mu.Unlock()
	return project, nil
}

// Emitter returns an emitter configured from the engine config.
func (e *Engine) Emitter() *emitter.Emitter {
	opts := []emitter.Option{
		emitter.WithClassesPerFile(e.cfg.Output.ClassesPerFile),
		emitter.WithVersion(e.version),
	}
	if e.progress != nil {
		opts = append(opts, emitter.WithProgress(e.progress))
	}
	return emitter.New(luatype.New(), filter.FromConfig(e.cfg.Filters), e.logger, opts...)
}

// OutputDir returns where a run for solution writes its files.
func (e *Engine) OutputDir(solution string) string {
	c := *e.cfg
	c.Solution = solution
	return c.OutputDir()
}

// Generate runs the full pipeline for path, or the configured solution when
// path is empty, and writes the annotation files.
func (e *Engine) Generate(ctx context.Context, path string) (*Result, error) {
	return e.GenerateInto(ctx, path, "")
}

// GenerateInto is Generate with an explicit output directory. An empty
// outDir selects the configured one.
func (e *Engine) GenerateInto(ctx context.Context, path, outDir string) (*Result, error) {
	e.run.Lock()
	defer e.run.Unlock()

	start := time.Now()
	if path == "" {
		path = e.cfg.Solution
	}
	path = strings.Trim(strings.TrimSpace(path), `"'`)
	if path == "" {
		return nil, errors.WithHint(errors.Mark(errors.New("no solution path given"), ErrLoad), loadHint)
	}

	units, p, err := e.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	project, err := e.Build(ctx, units)
	if err != nil {
		return nil, errors.Wrap(err, "building project")
	}

	if outDir == "" {
		outDir = e.OutputDir(path)
	}
	artifacts, err := e.Emitter().Emit(ctx, project, outDir)
	if err != nil {
		return nil, errors.Wrap(err, "emitting annotations")
	}

	res := &Result{
		Solution:  path,
		OutputDir: outDir,
		Provider:  p.Name(),
		Units:     len(units),
		Classes:   project.Len(),
	}
	for _, a := range artifacts {
		res.Emitted += a.Classes
		res.Files = append(res.Files, filepath.Join(outDir, a.Name))
	}
	res.Duration = time.Since(start)

	e.mu.Lock()
	e.result = res
	e.mu.Unlock()

	e.logger.Infow("generation finished",
		"classes", res.Classes, "emitted", res.Emitted, "files", len(res.Files), "duration", res.Duration.String())
	return res, nil
}

// RenderClass renders the annotation block of the class called name in the
// current project. Name may be a full name or a simple name when unique.
func (e *Engine) RenderClass(name string) (string, error) {
	h := e.Hierarchy()
	if h == nil {
		return "", errors.New("no project built yet")
	}
	matches := h.Find(name)
	switch len(matches) {
	case 0:
		return "", errors.Newf("class %q not found", name)
	case 1:
		return e.Emitter().RenderClass(matches[0]), nil
	}
	var names []string
	for _, c := range matches {
		names = append(names, c.FullName())
	}
	return "", errors.WithHint(errors.Newf("class name %q is ambiguous", name),
		"use one of: "+strings.Join(names, ", "))
}
