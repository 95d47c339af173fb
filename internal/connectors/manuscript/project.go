// Package manuscript reads a novel project from disk. A project is a
// directory with a loom.yaml manifest that lists chapter files, character
// profiles, wiki entries and style samples.
package manuscript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/normalisers"
)

// ManifestFile is the project manifest name.
const ManifestFile = "loom.yaml"

// Manifest is the on-disk shape of loom.yaml.
type Manifest struct {
	ID           string          `yaml:"id"`
	Title        string          `yaml:"title"`
	Chapters     []ChapterSpec   `yaml:"chapters"`
	Characters   []CharacterSpec `yaml:"characters"`
	Wiki         []WikiSpec      `yaml:"wiki"`
	StyleSamples []StyleSpec     `yaml:"style_samples"`
}

// ChapterSpec points at one chapter file.
type ChapterSpec struct {
	ID      string `yaml:"id"`
	Order   int    `yaml:"order"`
	Title   string `yaml:"title"`
	File    string `yaml:"file"`
	Summary string `yaml:"summary"`
}

// CharacterSpec is an inline character profile.
type CharacterSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Role        string   `yaml:"role"`
	Description string   `yaml:"description"`
	Traits      []string `yaml:"traits"`
}

// WikiSpec is an inline world-building entry.
type WikiSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
}

// StyleSpec is a style reference, either inline or in a file.
type StyleSpec struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	File    string `yaml:"file"`
	Content string `yaml:"content"`
}

// Project is a loaded manuscript with chapter contents read from disk.
type Project struct {
	// Dir is the absolute project directory.
	Dir string

	// ID scopes every indexed record of this project.
	ID    string
	Title string

	Chapters     []domain.Chapter
	Characters   []domain.Character
	WikiEntries  []domain.WikiEntry
	StyleSamples []domain.StyleSample

	// chapterFiles maps absolute chapter paths to their spec.
	chapterFiles map[string]ChapterSpec
	normalisers  *normalisers.Registry
}

// LoadProject reads dir/loom.yaml and every file it references.
func LoadProject(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(abs, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s in %s", domain.ErrNotFound, ManifestFile, abs)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, ManifestFile, err)
	}
	if m.ID == "" {
		m.ID = filepath.Base(abs)
	}

	p := &Project{
		Dir:          abs,
		ID:           m.ID,
		Title:        m.Title,
		chapterFiles: make(map[string]ChapterSpec, len(m.Chapters)),
		normalisers:  normalisers.Default(),
	}
	if err := p.loadChapters(m.Chapters); err != nil {
		return nil, err
	}
	if err := p.loadEntities(m); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) loadChapters(specs []ChapterSpec) error {
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.File == "" {
			return fmt.Errorf("%w: chapter %d has no file", domain.ErrInvalidInput, i+1)
		}
		if spec.Order == 0 {
			spec.Order = i + 1
		}
		if spec.ID == "" {
			spec.ID = strings.TrimSuffix(filepath.Base(spec.File), filepath.Ext(spec.File))
		}
		if seen[spec.ID] {
			return fmt.Errorf("%w: duplicate chapter id %q", domain.ErrInvalidInput, spec.ID)
		}
		seen[spec.ID] = true

		path := p.resolve(spec.File)
		chapter, err := p.readChapter(path, spec)
		if err != nil {
			return err
		}
		p.chapterFiles[path] = spec
		p.Chapters = append(p.Chapters, chapter)
	}

	sort.SliceStable(p.Chapters, func(i, j int) bool {
		return p.Chapters[i].Order < p.Chapters[j].Order
	})
	return nil
}

func (p *Project) loadEntities(m Manifest) error {
	seen := make(map[string]bool)
	claim := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: %s without id or name", domain.ErrInvalidInput, kind)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate %s id %q", domain.ErrInvalidInput, kind, id)
		}
		seen[id] = true
		return nil
	}

	for _, c := range m.Characters {
		id := firstNonEmpty(c.ID, c.Name)
		if err := claim("character", id); err != nil {
			return err
		}
		p.Characters = append(p.Characters, domain.Character{
			ID: id, ProjectID: p.ID, Name: firstNonEmpty(c.Name, id),
			Role: c.Role, Description: c.Description, Traits: c.Traits,
		})
	}

	for _, w := range m.Wiki {
		id := firstNonEmpty(w.ID, w.Name)
		if err := claim("wiki entry", id); err != nil {
			return err
		}
		p.WikiEntries = append(p.WikiEntries, domain.WikiEntry{
			ID: id, ProjectID: p.ID, Name: firstNonEmpty(w.Name, id),
			Aliases: w.Aliases, Category: w.Category, Description: w.Description,
		})
	}

	for i, s := range m.StyleSamples {
		id := firstNonEmpty(s.ID, s.Title, fmt.Sprintf("style-%d", i+1))
		if err := claim("style sample", id); err != nil {
			return err
		}
		content := s.Content
		if s.File != "" {
			path := p.resolve(s.File)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read style sample %q: %w", id, err)
			}
			_, content = p.normalisers.Normalise(path, data)
		}
		p.StyleSamples = append(p.StyleSamples, domain.StyleSample{
			ID: id, ProjectID: p.ID, Title: s.Title, Content: content,
		})
	}
	return nil
}

// ChapterAt reports whether path is a chapter file of this project and, if
// so, re-reads it.
func (p *Project) ChapterAt(path string) (domain.Chapter, bool, error) {
	path = filepath.Clean(path)
	spec, ok := p.chapterFiles[path]
	if !ok {
		return domain.Chapter{}, false, nil
	}
	chapter, err := p.readChapter(path, spec)
	return chapter, true, err
}

// ChapterIDAt returns the chapter ID bound to path.
func (p *Project) ChapterIDAt(path string) (string, bool) {
	spec, ok := p.chapterFiles[filepath.Clean(path)]
	return spec.ID, ok
}

// ManifestPath returns the absolute path of loom.yaml.
func (p *Project) ManifestPath() string {
	return filepath.Join(p.Dir, ManifestFile)
}

// Dirs returns every directory holding the manifest or a chapter file.
func (p *Project) Dirs() []string {
	set := map[string]bool{p.Dir: true}
	for path := range p.chapterFiles {
		set[filepath.Dir(path)] = true
	}
	dirs := make([]string, 0, len(set))
	for dir := range set {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// EntityIDs returns the IDs of every entity in the project.
func (p *Project) EntityIDs() []string {
	ids := make([]string, 0, len(p.Chapters)+len(p.Characters)+len(p.WikiEntries)+len(p.StyleSamples))
	for _, c := range p.Chapters {
		ids = append(ids, c.ID)
	}
	for _, c := range p.Characters {
		ids = append(ids, c.ID)
	}
	for _, w := range p.WikiEntries {
		ids = append(ids, w.ID)
	}
	for _, s := range p.StyleSamples {
		ids = append(ids, s.ID)
	}
	return ids
}

// EntityKeys returns the store keys of every entity in the project.
func (p *Project) EntityKeys() []string {
	ids := p.EntityIDs()
	for i, id := range ids {
		ids[i] = domain.EntityKey(p.ID, id)
	}
	return ids
}

// Chapter returns the chapter with id.
func (p *Project) Chapter(id string) (domain.Chapter, bool) {
	for _, c := range p.Chapters {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Chapter{}, false
}

func (p *Project) readChapter(path string, spec ChapterSpec) (domain.Chapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("read chapter %q: %w", spec.ID, err)
	}
	title, text := p.normalisers.Normalise(path, data)
	return domain.Chapter{
		ID:        spec.ID,
		ProjectID: p.ID,
		Order:     spec.Order,
		Title:     firstNonEmpty(spec.Title, title),
		Content:   text,
		Summary:   spec.Summary,
	}, nil
}

func (p *Project) resolve(file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(p.Dir, file)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
