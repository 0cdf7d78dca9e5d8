/*
Package project collects the ProjectContext of a working directory:
how many source files it has and which languages and frameworks it uses.
*/
package project

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Soochol/superclaude-auto-flags/internal/learning"
	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

// sourcePattern selects files that count toward the project size.
const sourcePattern = "**/*.{py,js,ts,jsx,tsx,vue,go,rs,java,cpp,c}"

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"dist":         true,
	"build":        true,
}

// languageMarkers detect languages from top-level files.
var languageMarkers = []struct {
	language string
	patterns []string
}{
	{"python", []string{"*.py", "pyproject.toml", "requirements.txt"}},
	{"javascript", []string{"*.js", "package.json"}},
	{"typescript", []string{"*.ts", "tsconfig.json"}},
	{"go", []string{"*.go", "go.mod"}},
	{"rust", []string{"*.rs", "Cargo.toml"}},
	{"java", []string{"*.java", "pom.xml", "build.gradle"}},
}

var (
	npmFrameworks = []string{"react", "vue", "angular", "express", "next", "svelte"}
	pyFrameworks  = []string{"django", "flask", "fastapi"}
	goFrameworks  = map[string]string{
		"github.com/gin-gonic/gin": "gin",
		"github.com/labstack/echo": "echo",
		"github.com/gofiber/fiber": "fiber",
		"github.com/go-chi/chi":    "chi",
		"github.com/spf13/cobra":   "cobra",
	}
)

// Collect inspects dir and returns its context. The Project field is the
// SHA-256 fingerprint of the absolute path.
func Collect(dir string) (learning.ProjectContext, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return learning.ProjectContext{}, fmt.Errorf("failed to resolve project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return learning.ProjectContext{}, fmt.Errorf("failed to stat project: %w", err)
	}
	if !info.IsDir() {
		return learning.ProjectContext{}, fmt.Errorf("project path %s is not a directory", abs)
	}

	fsys := os.DirFS(abs)
	count, err := countSourceFiles(fsys)
	if err != nil {
		return learning.ProjectContext{}, err
	}

	return learning.ProjectContext{
		FileCount:  count,
		Languages:  detectLanguages(fsys),
		Frameworks: detectFrameworks(fsys),
		Project:    storage.HashProject(abs),
	}, nil
}

func countSourceFiles(fsys fs.FS) (int, error) {
	count := 0
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != "." {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != "." && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if ok, _ := doublestar.Match(sourcePattern, path); ok {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk project: %w", err)
	}
	return count, nil
}

func detectLanguages(fsys fs.FS) []string {
	var out []string
	for _, m := range languageMarkers {
		for _, p := range m.patterns {
			if matches, _ := doublestar.Glob(fsys, p); len(matches) > 0 {
				out = append(out, m.language)
				break
			}
		}
	}
	return out
}

func detectFrameworks(fsys fs.FS) []string {
	found := make(map[string]bool)

	if data, err := fs.ReadFile(fsys, "package.json"); err == nil {
		var pkg struct {
			Dependencies    map[string]string `json:"dependencies"`
			DevDependencies map[string]string `json:"devDependencies"`
		}
		if json.Unmarshal(data, &pkg) == nil {
			for _, fw := range npmFrameworks {
				_, dep := pkg.Dependencies[fw]
				_, dev := pkg.DevDependencies[fw]
				if dep || dev {
					found[fw] = true
				}
			}
		}
	}

	for _, name := range []string{"requirements.txt", "pyproject.toml"} {
		if data, err := fs.ReadFile(fsys, name); err == nil {
			content := strings.ToLower(string(data))
			for _, fw := range pyFrameworks {
				if strings.Contains(content, fw) {
					found[fw] = true
				}
			}
		}
	}

	if data, err := fs.ReadFile(fsys, "go.mod"); err == nil {
		content := string(data)
		for module, fw := range goFrameworks {
			if strings.Contains(content, module) {
				found[fw] = true
			}
		}
	}

	out := make([]string, 0, len(found))
	for fw := range found {
		out = append(out, fw)
	}
	sort.Strings(out)
	return out
}
