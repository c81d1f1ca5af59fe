package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// EnvTemplatesDir names the environment variable holding a ":"-separated
// list of extra template search directories.
const EnvTemplatesDir = "QUAP_TEMPLATES_DIR"

// Registry finds and loads templates by id/version. Search precedence:
// caller-provided directories first, then EnvTemplatesDir entries. Each
// directory may carry an optional index.json declaring ids, aliases, and
// file paths; directories without one are scanned for *.json files.
type Registry struct {
	dirs    []string
	indices map[string]indexFile
}

type indexFile struct {
	Templates []IndexEntry `json:"templates"`
}

// IndexEntry is one row of a directory's index.json.
type IndexEntry struct {
	TemplateID string   `json:"template_id"`
	Version    string   `json:"version,omitempty"`
	Label      string   `json:"label,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
	Path       string   `json:"path,omitempty"`
}

// ListedTemplate describes an available template for discovery output.
type ListedTemplate struct {
	TemplateID string
	Version    string
	Label      string
	Dir        string
}

// NewRegistry builds a registry over the given directories plus any
// EnvTemplatesDir entries. Missing directories are tolerated; unreadable
// index files are ignored, falling back to filename scanning.
func NewRegistry(dirs []string) *Registry {
	all := append([]string{}, dirs...)
	if env := os.Getenv(EnvTemplatesDir); env != "" {
		for _, p := range strings.Split(env, ":") {
			if strings.TrimSpace(p) != "" {
				all = append(all, p)
			}
		}
	}

	r := &Registry{dirs: all, indices: make(map[string]indexFile)}
	for _, d := range all {
		data, err := os.ReadFile(filepath.Join(d, "index.json"))
		if err != nil {
			continue
		}
		var idx indexFile
		if err := json.Unmarshal(data, &idx); err != nil {
			continue
		}
		r.indices[d] = idx
	}
	return r
}

// Dirs returns the effective search path.
func (r *Registry) Dirs() []string { return r.dirs }

// Load resolves a template id (or alias) to a file, optionally pinning an
// exact version. When version is empty the highest semantic version among
// matching candidates wins. Resolution order: index.json entries and
// aliases, then a direct <template_id>.json filename, then a full scan of
// every *.json in the search path.
func (r *Registry) Load(templateID, version string) (*Template, error) {
	var candidates []*Template

	if path := r.resolveViaIndex(templateID); path != "" {
		tpl, err := Load(path)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, tpl)
	}

	if len(candidates) == 0 {
		if path := r.resolveDirect(templateID); path != "" {
			tpl, err := Load(path)
			if err != nil {
				return nil, err
			}
			if tpl.TemplateID == templateID {
				candidates = append(candidates, tpl)
			}
		}
	}

	if len(candidates) == 0 {
		for _, path := range r.templateFiles() {
			tpl, err := Load(path)
			if err != nil {
				continue
			}
			if tpl.TemplateID == templateID {
				candidates = append(candidates, tpl)
			}
		}
	}

	if len(candidates) == 0 {
		return nil, &NotFoundError{TemplateID: templateID, Dirs: r.dirs}
	}

	if version != "" {
		for _, tpl := range candidates {
			if tpl.Version == version {
				return tpl, nil
			}
		}
		return nil, &NotFoundError{TemplateID: templateID, Version: version, Dirs: r.dirs}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return semverLess(candidates[j].Version, candidates[i].Version)
	})
	return candidates[0], nil
}

// List enumerates templates advertised by index files across the search
// path, first match per id/version pair winning.
func (r *Registry) List() []ListedTemplate {
	seen := make(map[string]struct{})
	var out []ListedTemplate
	for _, d := range r.dirs {
		idx, ok := r.indices[d]
		if !ok {
			continue
		}
		for _, t := range idx.Templates {
			key := t.TemplateID + "\x00" + t.Version
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, ListedTemplate{
				TemplateID: t.TemplateID,
				Version:    t.Version,
				Label:      t.Label,
				Dir:        d,
			})
		}
	}
	return out
}

func (r *Registry) resolveViaIndex(templateID string) string {
	// Exact id matches across all indices take precedence over aliases.
	for _, d := range r.dirs {
		idx, ok := r.indices[d]
		if !ok {
			continue
		}
		for _, t := range idx.Templates {
			if t.TemplateID == templateID && t.Path != "" {
				p := filepath.Join(d, t.Path)
				if _, err := os.Stat(p); err == nil {
					return p
				}
			}
		}
	}
	for _, d := range r.dirs {
		idx, ok := r.indices[d]
		if !ok {
			continue
		}
		for _, t := range idx.Templates {
			for _, alias := range t.Aliases {
				if alias == templateID && t.Path != "" {
					p := filepath.Join(d, t.Path)
					if _, err := os.Stat(p); err == nil {
						return p
					}
				}
			}
		}
	}
	return ""
}

func (r *Registry) resolveDirect(templateID string) string {
	for _, d := range r.dirs {
		p := filepath.Join(d, templateID+".json")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (r *Registry) templateFiles() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, d := range r.dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
				continue
			}
			if strings.EqualFold(e.Name(), "index.json") {
				continue
			}
			p := filepath.Join(d, e.Name())
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// semverLess compares "major.minor.patch" strings numerically, treating
// malformed parts as zero.
func semverLess(a, b string) bool {
	av, bv := semverTuple(a), semverTuple(b)
	for i := 0; i < 3; i++ {
		if av[i] != bv[i] {
			return av[i] < bv[i]
		}
	}
	return false
}

func semverTuple(s string) [3]int {
	var out [3]int
	for i, part := range strings.SplitN(s, ".", 3) {
		if i >= 3 {
			break
		}
		if n, err := strconv.Atoi(part); err == nil {
			out[i] = n
		}
	}
	return out
}
