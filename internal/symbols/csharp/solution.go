package csharp

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// project is one compiled unit: a .csproj directory, or an explicit file
// list when a single source file was given.
type project struct {
	name  string
	dir   string
	files []string
}

// Project("{FAE04EC0-...}") = "Game.Core", "src\Game.Core\Game.Core.csproj", "{...}"
var solutionProject = regexp.MustCompile(`^Project\("\{[^}]*\}"\)\s*=\s*"([^"]*)"\s*,\s*"([^"]*)"`)

// discover maps path to the projects it stands for.
func (p *Provider) discover(path string) ([]project, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	if !info.IsDir() {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".sln":
			return readSolution(path)
		case ".csproj":
			proj, err := readProject(path)
			if err != nil {
				return nil, err
			}
			return []project{proj}, nil
		case ".cs":
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			return []project{{name: name, dir: filepath.Dir(path), files: []string{path}}}, nil
		}
		return nil, errors.Newf("unsupported file %s", path)
	}

	if slns, _ := filepath.Glob(filepath.Join(path, "*.sln")); len(slns) > 0 {
		sort.Strings(slns)
		if len(slns) > 1 {
			p.logger.Warnw("several solutions found, using the first", "solutions", slns)
		}
		return readSolution(slns[0])
	}

	var projects []project
	err = p.walk(path, false, func(file string) error {
		proj, err := readProject(file)
		if err != nil {
			return err
		}
		projects = append(projects, proj)
		return nil
	}, ".csproj")
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", path)
	}
	if len(projects) > 0 {
		return projects, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	return []project{{name: filepath.Base(abs), dir: path}}, nil
}

// readSolution lists the C# projects of a .sln file in solution order.
func readSolution(path string) ([]project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading solution %s", path)
	}
	base := filepath.Dir(path)

	var projects []project
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m := solutionProject.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		rel := filepath.FromSlash(strings.ReplaceAll(m[2], `\`, "/"))
		if !strings.EqualFold(filepath.Ext(rel), ".csproj") {
			// Solution folders and other project types.
			continue
		}
		proj, err := readProject(filepath.Join(base, rel))
		if err != nil {
			return nil, errors.Wrapf(err, "solution %s", path)
		}
		projects = append(projects, proj)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading solution %s", path)
	}
	return projects, nil
}

type msbuildProject struct {
	PropertyGroups []struct {
		AssemblyName string `xml:"AssemblyName"`
	} `xml:"PropertyGroup"`
}

// readProject names a project after its AssemblyName property, falling back
// to the file name.
func readProject(path string) (project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return project{}, errors.Wrapf(err, "reading project %s", path)
	}
	proj := project{
		name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		dir:  filepath.Dir(path),
	}
	var doc msbuildProject
	if err := xml.Unmarshal(data, &doc); err != nil {
		return proj, nil
	}
	for _, pg := range doc.PropertyGroups {
		if name := strings.TrimSpace(pg.AssemblyName); name != "" && !strings.Contains(name, "$(") {
			proj.name = name
			break
		}
	}
	return proj, nil
}
