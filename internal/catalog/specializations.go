package catalog

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// Specialization is one category directory and the agents directly in it.
type Specialization struct {
	Slug   string   `json:"slug"`  // directory name
	Title  string   `json:"title"` // "product-design" → "Product Design"
	Agents []string `json:"agents"`
}

// Specializations lists the immediate subdirectories of root that contain
// at least one .md file, in sorted order.
func Specializations(root string) ([]Specialization, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var out []Specialization
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(root, e.Name(), "*.md"))
		if err != nil || len(files) == 0 {
			continue
		}
		agents := make([]string, 0, len(files))
		for _, f := range files {
			agents = append(agents, strings.TrimSuffix(filepath.Base(f), ".md"))
		}
		slices.Sort(agents)
		out = append(out, Specialization{Slug: e.Name(), Title: Title(e.Name()), Agents: agents})
	}
	return out, nil
}

// Title turns a directory slug into a display title: hyphens become spaces
// and every word is capitalised.
func Title(slug string) string {
	s := strings.ReplaceAll(slug, "-", " ")
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// CategoriesOverview renders the markdown agent overview used in routing
// prompts.
func CategoriesOverview(specs []Specialization) string {
	lines := make([]string, 0, len(specs))
	for _, s := range specs {
		lines = append(lines, "\n### "+s.Title+"\n- "+strings.Join(s.Agents, "\n- "))
	}
	return strings.Join(lines, "\n")
}

// CategoryPattern joins the lowercased category titles with "|".
func CategoryPattern(specs []Specialization) string {
	var seen []string
	for _, s := range specs {
		t := strings.ToLower(s.Title)
		if !slices.Contains(seen, t) {
			seen = append(seen, t)
		}
	}
	return strings.Join(seen, "|")
}
