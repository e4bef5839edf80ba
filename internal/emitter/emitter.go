// Package emitter renders a built project into EmmyLua annotation files:
// one .meta.lua stub plus one file per namespace chunk.
package emitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/filter"
	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/luatype"
	"github.com/dejo1307/cs2luadoc/internal/model"
)

const (
	// MetaFile is the name of the root stub.
	MetaFile = ".meta.lua"
	// GlobalLabel names the files of the global namespace.
	GlobalLabel = "CS_Global"

	timeLayout = "2006-01-02 15:04:05"
)

// ErrUnsafeOutputDir is returned when the output directory would wipe
// something other than a generated tree.
var ErrUnsafeOutputDir = errors.New("refusing to clean output directory")

// Artifact is one rendered file.
type Artifact struct {
	Name      string
	Namespace string
	Classes   int // class blocks written
	Content   []byte
}

// Emitter renders and writes annotation files.
type Emitter struct {
	renderer       *luatype.Renderer
	pipeline       *filter.Pipeline
	logger         *zap.SugaredLogger
	classesPerFile int
	clock          func() time.Time
	version        string
	progress       func(done, total int)
	concurrency    int
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithClassesPerFile sets the chunk size. Non-positive values keep the default.
func WithClassesPerFile(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.classesPerFile = n
		}
	}
}

// WithClock sets the time source for the meta stamp.
func WithClock(clock func() time.Time) Option {
	return func(e *Emitter) { e.clock = clock }
}

// WithVersion sets the version written to the meta stamp.
func WithVersion(v string) Option {
	return func(e *Emitter) { e.version = v }
}

// WithProgress registers a callback invoked after each namespace group is
// rendered.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Emitter) { e.progress = fn }
}

// WithConcurrency bounds the number of files written at once.
func WithConcurrency(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New returns an Emitter. A nil renderer or pipeline gets a fresh renderer
// and an empty pipeline.
func New(renderer *luatype.Renderer, pipeline *filter.Pipeline, logger *zap.SugaredLogger, opts ...Option) *Emitter {
	if renderer == nil {
		renderer = luatype.New()
	}
	if pipeline == nil {
		pipeline = filter.NewPipeline()
	}
	e := &Emitter{
		renderer:       renderer,
		pipeline:       pipeline,
		logger:         logging.OrNop(logger).Named("emitter"),
		classesPerFile: config.DefaultClassesPerFile,
		clock:          time.Now,
		version:        "dev",
		concurrency:    8,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type group struct {
	namespace string
	classes   []*model.ClassMetaData
}

// groups returns the selected classes grouped by namespace, groups ordered by
// first appearance.
func (e *Emitter) groups(project *model.ProjectMetaData) []*group {
	var out []*group
	index := make(map[string]*group)
	for _, c := range e.pipeline.Select(project.Classes()) {
		g, ok := index[c.Namespace]
		if !ok {
			g = &group{namespace: c.Namespace}
			index[c.Namespace] = g
			out = append(out, g)
		}
		g.classes = append(g.classes, c)
	}
	return out
}

// Chunk splits classes into consecutive runs of at most n.
func Chunk(classes []*model.ClassMetaData, n int) [][]*model.ClassMetaData {
	if n <= 0 {
		n = config.DefaultClassesPerFile
	}
	var out [][]*model.ClassMetaData
	for start := 0; start < len(classes); start += n {
		end := min(start+n, len(classes))
		out = append(out, classes[start:end])
	}
	return out
}

// FileName returns the file name of chunk index of namespace ns. A negative
// index means the namespace fits in one file.
func FileName(ns string, index int) string {
	label := ns
	if label == "" {
		label = GlobalLabel
	}
	if index < 0 {
		return label + ".lua"
	}
	return fmt.Sprintf("%s_%d.lua", label, index)
}

// Render produces every artifact in memory, the meta stub first.
func (e *Emitter) Render(ctx context.Context, project *model.ProjectMetaData) ([]Artifact, error) {
	artifacts := []Artifact{{Name: MetaFile, Content: e.meta()}}

	groups := e.groups(project)
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "rendering annotations")
		}
		chunks := Chunk(g.classes, e.classesPerFile)
		for j, chunk := range chunks {
			index := j
			if len(chunks) == 1 {
				index = -1
			}
			artifacts = append(artifacts, Artifact{
				Name:      FileName(g.namespace, index),
				Namespace: g.namespace,
				Classes:   rendered(chunk),
				Content:   e.file(g.namespace, chunk),
			})
		}
		e.logger.Debugw("rendered namespace", "namespace", g.namespace, "classes", len(g.classes), "files", len(chunks))
		if e.progress != nil {
			e.progress(i+1, len(groups))
		}
	}
	return artifacts, nil
}

// Write replaces dir with the given artifacts. The directory is removed and
// recreated first so files of a previous run never remain.
func (e *Emitter) Write(ctx context.Context, dir string, artifacts []Artifact) error {
	if err := cleanDir(dir); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, a := range artifacts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, a.Name)
			if err := os.WriteFile(path, a.Content, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.logger.Infow("wrote annotations", "dir", dir, "files", len(artifacts))
	return nil
}

// Emit renders project and writes it to dir.
func (e *Emitter) Emit(ctx context.Context, project *model.ProjectMetaData, dir string) ([]Artifact, error) {
	artifacts, err := e.Render(ctx, project)
	if err != nil {
		return nil, err
	}
	if err := e.Write(ctx, dir, artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func cleanDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.Wrap(ErrUnsafeOutputDir, "empty path")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", dir)
	}
	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return errors.Wrapf(ErrUnsafeOutputDir, "%s is a filesystem root", abs)
	}
	if err := os.RemoveAll(abs); err != nil {
		return errors.Wrapf(err, "removing %s", abs)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", abs)
	}
	return nil
}

func (e *Emitter) meta() []byte {
	var sb strings.Builder
	sb.WriteString("---@meta\n")
	sb.WriteString("-- Generated by cs2luadoc\n")
	fmt.Fprintf(&sb, "-- Version: %s\n", e.version)
	fmt.Fprintf(&sb, "-- Time: %s\n", e.clock().Format(timeLayout))
	sb.WriteString("\n")
	sb.WriteString("CS = {}\n")
	sb.WriteString("\n")
	return []byte(sb.String())
}

// rendered counts the classes of chunk that writeClass emits.
func rendered(chunk []*model.ClassMetaData) int {
	n := 0
	for _, c := range chunk {
		if c.IsPublic {
			n++
		}
	}
	return n
}

func (e *Emitter) file(ns string, classes []*model.ClassMetaData) []byte {
	var sb strings.Builder
	sb.WriteString("---@meta\n")
	fmt.Fprintf(&sb, "-- namespace %s\n", ns)
	sb.WriteString("\n")
	if ns != "" {
		last := ns[strings.LastIndexByte(ns, '.')+1:]
		fmt.Fprintf(&sb, "local %s = {}\n", last)
		fmt.Fprintf(&sb, "CS.%s = %s\n", ns, last)
	}
	sb.WriteString("\n")
	for _, c := range classes {
		e.writeClass(&sb, c)
	}
	return []byte(sb.String())
}

// RenderClass returns the annotation block of a single class, or an empty
// string when the class is not public.
func (e *Emitter) RenderClass(c *model.ClassMetaData) string {
	var sb strings.Builder
	e.writeClass(&sb, c)
	return sb.String()
}
