// Package csharp provides compiled units read straight from C# sources with
// tree-sitter. It has no semantic model: declarations are lowered to the
// dump package's declaration types and resolved there by name.
package csharp

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/glob"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/symbols"
	"github.com/dejo1307/cs2luadoc/internal/symbols/dump"
)

// ProviderName identifies the C# source provider.
const ProviderName = "csharp"

// DefaultIgnore lists build output and tool directories never scanned.
var DefaultIgnore = []string{"bin/**", "obj/**", ".git/**", ".vs/**"}

// Provider loads C# solutions, projects and source directories.
type Provider struct {
	logger      *zap.SugaredLogger
	patterns    []string
	ignore      []glob.Glob
	concurrency int
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithIgnore replaces the ignore globs. Patterns are matched against paths
// relative to the project directory, with forward slashes.
func WithIgnore(patterns []string) Option {
	return func(p *Provider) { p.patterns = patterns }
}

// WithConcurrency bounds the number of files parsed at once.
func WithConcurrency(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New returns a C# source provider. Invalid ignore patterns are logged and
// skipped.
func New(opts ...Option) *Provider {
	p := &Provider{patterns: DefaultIgnore, concurrency: runtime.NumCPU()}
	for _, o := range opts {
		o(p)
	}
	p.logger = logging.OrNop(p.logger).Named(ProviderName)
	for _, pattern := range p.patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			p.logger.Warnw("ignoring invalid ignore pattern", "pattern", pattern, "error", err)
			continue
		}
		p.ignore = append(p.ignore, g)
	}
	return p
}

// Name returns "csharp".
func (p *Provider) Name() string { return ProviderName }

// Detect reports whether path is a solution, a project, a source file, or a
// directory holding any of them.
func (p *Provider) Detect(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, nil
	}
	if !info.IsDir() {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".sln", ".csproj", ".cs":
			return true, nil
		}
		return false, nil
	}

	found := false
	err = p.walk(path, false, func(string) error {
		found = true
		return fs.SkipAll
	}, ".sln", ".csproj", ".cs")
	if err != nil {
		return false, errors.Wrapf(err, "scanning %s", path)
	}
	return found, nil
}

// Load parses every project found at path and resolves the declarations
// into units.
func (p *Provider) Load(ctx context.Context, path string) ([]*symbols.Unit, error) {
	f, err := p.Declarations(ctx, path)
	if err != nil {
		return nil, err
	}
	units, err := dump.Resolve(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "resolving declarations")
	}
	return units, nil
}

// Declarations parses every project found at path without resolving type
// references.
func (p *Provider) Declarations(ctx context.Context, path string) (*dump.File, error) {
	projects, err := p.discover(path)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, errors.Newf("no C# projects found at %s", path)
	}

	f := &dump.File{}
	for _, proj := range projects {
		files := proj.files
		if files == nil {
			if files, err = p.sourceFiles(proj.dir); err != nil {
				return nil, errors.Wrapf(err, "listing sources of %s", proj.name)
			}
		}
		types, err := p.parseFiles(ctx, files)
		if err != nil {
			return nil, errors.Wrapf(err, "loading unit %s", proj.name)
		}
		types = mergePartials(types)
		addImplicitConstructors(types)
		f.Units = append(f.Units, dump.UnitDecl{Name: proj.name, Types: types})
		p.logger.Infow("parsed project", "unit", proj.name, "files", len(files), "types", len(types))
	}
	return f, nil
}

// sourceFiles lists the .cs files of a project directory. Directories that
// hold a project of their own belong to that project.
func (p *Provider) sourceFiles(dir string) ([]string, error) {
	var files []string
	err := p.walk(dir, true, func(path string) error {
		files = append(files, path)
		return nil
	}, ".cs")
	return files, err
}

// walk calls fn for every file under root with one of the given extensions.
// With ownProjects set, subdirectories containing a .csproj are skipped.
func (p *Provider) walk(root string, ownProjects bool, fn func(path string) error, exts ...string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if p.isIgnored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if ownProjects && hasProject(path) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				return fn(path)
			}
		}
		return nil
	})
}

func (p *Provider) isIgnored(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range p.ignore {
		if g.Match(rel) || (isDir && g.Match(rel+"/")) {
			return true
		}
	}
	return false
}

func hasProject(dir string) bool {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.csproj"))
	return len(matches) > 0
}

// parseFiles parses files concurrently and returns their declarations in
// file order.
func (p *Provider) parseFiles(ctx context.Context, files []string) ([]dump.TypeDecl, error) {
	results := make([][]dump.TypeDecl, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrapf(err, "reading %s", file)
			}
			results[i] = Parse(file, src, p.logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []dump.TypeDecl
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// mergePartials folds declarations of the same type into the first one.
func mergePartials(types []dump.TypeDecl) []dump.TypeDecl {
	var out []dump.TypeDecl
	index := make(map[string]int)
	for _, t := range types {
		key := t.Namespace + "." + t.Name + "`" + strconv.Itoa(len(t.TypeParams))
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, t)
			continue
		}
		merged := &out[i]
		merged.Bases = appendMissing(merged.Bases, t.Bases...)
		if merged.Doc == "" {
			merged.Doc = t.Doc
		}
		if merged.Access != t.Access && t.Access != "internal" && t.Access != "private" {
			merged.Access = t.Access
		}
		merged.Static = merged.Static || t.Static
		merged.Abstract = merged.Abstract || t.Abstract
		merged.Usings = appendMissing(merged.Usings, t.Usings...)
		for k, v := range t.Aliases {
			if merged.Aliases == nil {
				merged.Aliases = make(map[string]string)
			}
			if _, exists := merged.Aliases[k]; !exists {
				merged.Aliases[k] = v
			}
		}
		for j, tp := range t.TypeParams {
			if j < len(merged.TypeParams) && len(merged.TypeParams[j].Constraints) == 0 {
				merged.TypeParams[j].Constraints = tp.Constraints
			}
		}
		merged.Fields = append(merged.Fields, t.Fields...)
		merged.Properties = append(merged.Properties, t.Properties...)
		merged.Events = append(merged.Events, t.Events...)
		merged.Methods = append(merged.Methods, t.Methods...)
		merged.Constructors = append(merged.Constructors, t.Constructors...)
		merged.Nested = append(merged.Nested, t.Nested...)
	}
	for i := range out {
		if len(out[i].Nested) > 1 {
			out[i].Nested = mergePartials(out[i].Nested)
		}
	}
	return out
}

// addImplicitConstructors adds the parameterless constructor the compiler
// synthesizes for a non-static class declaring no instance constructor, and
// for a struct not declaring a parameterless one. Abstract classes get a
// protected one.
func addImplicitConstructors(types []dump.TypeDecl) {
	for i := range types {
		t := &types[i]
		addImplicitConstructors(t.Nested)
		if t.Static || (t.Kind != "class" && t.Kind != "struct") {
			continue
		}
		if declaresConstructor(t, t.Kind == "struct") {
			continue
		}
		acc := "public"
		if t.Abstract {
			acc = "protected"
		}
		t.Constructors = append(t.Constructors, dump.MethodDecl{Access: acc})
	}
}

func declaresConstructor(t *dump.TypeDecl, parameterless bool) bool {
	for _, c := range t.Constructors {
		if c.Static {
			continue
		}
		if !parameterless || len(c.Params) == 0 {
			return true
		}
	}
	return false
}

func appendMissing(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, existing := range list {
			if existing == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}
