package catalog

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/soyeahso/agentdesk/internal/logging"
)

// NotFoundError is returned when a named agent or workflow does not exist.
type NotFoundError struct {
	Kind string // "Agent" or "Workflow"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// Catalog is an in-memory set of agent definitions keyed by name.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// New creates a catalog holding defs. Later duplicates win.
func New(defs ...Definition) *Catalog {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		c.defs[d.Name] = d
	}
	return c
}

// Put adds or replaces a definition.
func (c *Catalog) Put(d Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[d.Name] = d
}

// Remove deletes a definition and reports whether it existed.
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.defs[name]; !ok {
		return false
	}
	delete(c.defs, name)
	return true
}

// Get returns the definition for name.
func (c *Catalog) Get(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[name]
	return d, ok
}

// List returns all agent names, sorted.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ByCategory returns the definitions whose category equals cat exactly,
// sorted by name.
func (c *Catalog) ByCategory(cat string) []Definition {
	var out []Definition
	for _, n := range c.List() {
		if d, _ := c.Get(n); d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var cats []string
	for _, d := range c.defs {
		if !slices.Contains(cats, d.Category) {
			cats = append(cats, d.Category)
		}
	}
	slices.Sort(cats)
	return cats
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Loader reads agent definitions from disk.
type Loader struct {
	Defaults ModelDefaults
	log      *logging.Logger
}

// NewLoader creates a loader that fills missing model/provider from d.
func NewLoader(d ModelDefaults, log *logging.Logger) *Loader {
	return &Loader{Defaults: d, log: log.Sub("catalog")}
}

// LoadFile parses one agent file. Malformed frontmatter is logged and
// ignored.
func (l *Loader) LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	fm, body, err := SplitFrontmatter(string(data))
	if err != nil {
		l.log.Warn().Str("file", path).Err(err).Msg("could not parse frontmatter")
	}
	return Resolve(path, fm, body, l.Defaults), nil
}

// LoadAll loads every markdown file under dir.
func (l *Loader) LoadAll(dir string) (*Catalog, error) {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("Agents directory not found: %s", dir)
	}

	files, err := MarkdownFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	cat := New()
	if len(files) == 0 {
		l.log.Warn().Str("dir", dir).Msg("no .md files found")
		return cat, nil
	}

	l.log.Info().Int("files", len(files)).Msg("loading agent files")
	for _, f := range files {
		def, err := l.LoadFile(f)
		if err != nil {
			l.log.Error().Str("file", f).Err(err).Msg("failed to load agent")
			continue
		}
		if prev, dup := cat.Get(def.Name); dup {
			l.log.Warn().Str("agent", def.Name).Str("previous", prev.FilePath).Str("file", f).Msg("duplicate agent name, later file wins")
		}
		cat.Put(def)
		l.log.Debug().Str("agent", def.Name).Str("category", def.Category).Msg("loaded agent")
	}
	return cat, nil
}
