package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dejo1307/cs2luadoc/internal/config"
	"github.com/dejo1307/cs2luadoc/internal/engine"
	"github.com/dejo1307/cs2luadoc/internal/logging"
	"github.com/dejo1307/cs2luadoc/internal/model"
)

const (
	classesURI = "luadoc://project/classes"

	defaultLimit = 50
	maxLimit     = 500
)

// Server wraps the MCP server and connects it to the generation engine.
type Server struct {
	mcp    *mcp.Server
	eng    *engine.Engine
	cfg    *config.Config
	logger *zap.SugaredLogger
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, cfg *config.Config, logger *zap.SugaredLogger, version string) *Server {
	s := &Server{
		eng:    eng,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("server"),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "cs2luadoc",
		Version: version,
	}, nil)

	s.registerResources()
	s.registerTools()
	return s
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Infow("starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// classSummary is the JSON shape of a class in query results.
type classSummary struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Namespace    string `json:"namespace"`
	Name         string `json:"name"`
	Public       bool   `json:"public"`
	Generic      bool   `json:"generic,omitempty"`
	Base         string `json:"base,omitempty"`
	Fields       int    `json:"fields"`
	Properties   int    `json:"properties"`
	Methods      int    `json:"methods"`
	Events       int    `json:"events"`
	Constructors int    `json:"constructors"`
}

func summarize(c *model.ClassMetaData) classSummary {
	cs := classSummary{
		ID:           c.ID,
		FullName:     c.FullName(),
		Namespace:    c.Namespace,
		Name:         c.Name,
		Public:       c.IsPublic,
		Generic:      c.IsGenericClass,
		Fields:       len(c.Fields),
		Properties:   len(c.Properties),
		Methods:      len(c.Methods),
		Events:       len(c.Events),
		Constructors: len(c.Constructors),
	}
	if c.BaseClass != nil {
		cs.Base = c.BaseClass.FullName()
	}
	return cs
}

// registerResources adds the MCP resource listing the built classes.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         classesURI,
		Name:        "Project Classes",
		Description: "Every class of the last built project as JSON",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := s.classesJSON()
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: string(content), MIMEType: "application/json"},
			},
		}, nil
	})
}

func (s *Server) classesJSON() ([]byte, error) {
	project := s.eng.Project()
	if project == nil {
		return nil, errors.New("no project available (run generate_annotations first)")
	}
	summaries := make([]classSummary, 0, project.Len())
	for _, c := range project.Classes() {
		summaries = append(summaries, summarize(c))
	}
	return json.MarshalIndent(summaries, "", "  ")
}

// generateArgs are the arguments for the generate_annotations tool.
type generateArgs struct {
	SolutionPath string `json:"solution_path,omitempty" jsonschema:"Path to a .sln, .csproj, source directory or symbol dump. Defaults to the configured solution."`
	OutputDir    string `json:"output_dir,omitempty" jsonschema:"Directory to write the annotation files to. It is deleted and recreated."`
}

// queryClassesArgs are the arguments for the query_classes tool.
type queryClassesArgs struct {
	Namespace  string `json:"namespace,omitempty" jsonschema:"Keep classes whose namespace starts with this prefix"`
	Name       string `json:"name,omitempty" jsonschema:"Keep classes whose full name contains this text, case-insensitive"`
	PublicOnly bool   `json:"public_only,omitempty" jsonschema:"Keep public classes only"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 50, max 500)"`
}

// showClassArgs are the arguments for the show_class tool.
type showClassArgs struct {
	Name string `json:"name" jsonschema:"Full or simple class name"`
}

// classHierarchyArgs are the arguments for the class_hierarchy tool.
type classHierarchyArgs struct {
	Name      string `json:"name" jsonschema:"Full or simple class name"`
	Direction string `json:"direction,omitempty" jsonschema:"up for base classes, down for derived classes (default up)"`
	MaxDepth  int    `json:"max_depth,omitempty" jsonschema:"Traversal depth limit (default 5)"`
}

// registerTools adds MCP tools for generation and class queries.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_annotations",
		Description: "Generate EmmyLua annotation files for a C# solution. Loads the symbols, builds the class model and writes one .meta.lua stub plus one file per namespace.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args generateArgs) (*mcp.CallToolResult, any, error) {
		return s.generate(ctx, args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_classes",
		Description: "List classes of the last built project filtered by namespace prefix, name and visibility. Returns JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryClassesArgs) (*mcp.CallToolResult, any, error) {
		return s.queryClasses(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_class",
		Description: "Show the EmmyLua annotation block generated for one class.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showClassArgs) (*mcp.CallToolResult, any, error) {
		return s.showClass(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "class_hierarchy",
		Description: "Walk the inheritance chain of a class, up to its bases or down to the classes deriving from it. Returns JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args classHierarchyArgs) (*mcp.CallToolResult, any, error) {
		return s.classHierarchy(args), nil, nil
	})
}

func (s *Server) generate(ctx context.Context, args generateArgs) *mcp.CallToolResult {
	solution := args.SolutionPath
	if solution == "" {
		solution = s.cfg.Solution
	}
	if solution == "" {
		return errorResult("solution_path is required when no solution is configured")
	}
	abs, err := filepath.Abs(strings.Trim(solution, `"'`))
	if err != nil {
		return errorResult(fmt.Sprintf("invalid solution path: %v", err))
	}

	res, err := s.eng.GenerateInto(ctx, abs, args.OutputDir)
	if err != nil {
		msg := fmt.Sprintf("generation failed: %v", err)
		if hint := errors.FlattenHints(err); hint != "" {
			msg += "\n" + hint
		}
		return errorResult(msg)
	}

	summary := fmt.Sprintf(
		"Annotations generated successfully.\n\n"+
			"- Solution: %s\n"+
			"- Provider: %s\n"+
			"- Units: %d\n"+
			"- Classes: %d\n"+
			"- Emitted: %d\n"+
			"- Files: %d\n"+
			"- Output: %s\n"+
			"- Duration: %s\n\n"+
			"Use query_classes or the %s resource to explore the model.",
		res.Solution, res.Provider, res.Units, res.Classes, res.Emitted,
		len(res.Files), res.OutputDir, res.Duration, classesURI,
	)
	return textResult(summary)
}

func (s *Server) queryClasses(args queryClassesArgs) *mcp.CallToolResult {
	project := s.eng.Project()
	if project == nil {
		return errorResult("No project available. Run generate_annotations first.")
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	name := strings.ToLower(args.Name)
	var results []classSummary
	total := 0
	for _, c := range project.Classes() {
		if args.Namespace != "" && !strings.HasPrefix(c.Namespace, args.Namespace) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(c.FullName()), name) {
			continue
		}
		if args.PublicOnly && !c.IsPublic {
			continue
		}
		total++
		if len(results) < limit {
			results = append(results, summarize(c))
		}
	}
	if results == nil {
		results = []classSummary{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err))
	}
	text := string(data)
	if total > len(results) {
		text += fmt.Sprintf("\n\n... (showing %d of %d results, refine your query)", len(results), total)
	}
	return textResult(text)
}

func (s *Server) showClass(args showClassArgs) *mcp.CallToolResult {
	if args.Name == "" {
		return errorResult("name is required")
	}
	block, err := s.eng.RenderClass(args.Name)
	if err != nil {
		msg := err.Error()
		if hint := errors.FlattenHints(err); hint != "" {
			msg += "\n" + hint
		}
		return errorResult(msg)
	}
	if block == "" {
		return errorResult(fmt.Sprintf("class %q is not public and produces no annotations", args.Name))
	}
	return textResult("```lua\n" + block + "```\n")
}

func (s *Server) classHierarchy(args classHierarchyArgs) *mcp.CallToolResult {
	h := s.eng.Hierarchy()
	if h == nil {
		return errorResult("No project available. Run generate_annotations first.")
	}
	if args.Name == "" {
		return errorResult("name is required")
	}

	dir := model.Up
	switch strings.ToLower(args.Direction) {
	case "", "up":
	case "down":
		dir = model.Down
	default:
		return errorResult(fmt.Sprintf("invalid direction %q: use up or down", args.Direction))
	}

	matches := h.Find(args.Name)
	switch {
	case len(matches) == 0:
		return errorResult(fmt.Sprintf("No class matching %q", args.Name))
	case len(matches) > 1:
		var names []string
		for _, c := range matches {
			names = append(names, c.FullName())
		}
		return errorResult(fmt.Sprintf("%q is ambiguous: %s", args.Name, strings.Join(names, ", ")))
	}

	result := h.Traverse(matches[0].ID, dir, args.MaxDepth, 0)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal hierarchy: %v", err))
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
