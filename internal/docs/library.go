// Package docs serves the operator knowledge base: a directory of
// markdown documents (tomes and runbooks) the model can search and read.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Library is a read-only view of a markdown directory. Files are read
// on demand so documents can be edited while the agent runs.
type Library struct {
	dir    string
	logger *zap.Logger
}

func NewLibrary(dir string, logger *zap.Logger) *Library {
	return &Library{dir: dir, logger: logger}
}

// Document identifies one markdown file in the library.
type Document struct {
	Name  string `json:"name"`  // file name without extension
	Title string `json:"title"` // first markdown heading, or the name
}

// List returns the documents in the library sorted by name. A missing
// directory is an empty library, not an error.
func (l *Library) List() ([]Document, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading docs directory %s: %w", l.dir, err)
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		docs = append(docs, Document{Name: name, Title: l.titleOf(name)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Get returns a document's full markdown content.
func (l *Library) Get(name string) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no document named %q", name)
		}
		return "", fmt.Errorf("reading document %q: %w", name, err)
	}
	return string(data), nil
}

// Match is one search hit.
type Match struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Score   int    `json:"score"`
	Snippet string `json:"snippet"`
}

// Search ranks documents by how often the query terms appear in them.
// Matching is case-insensitive and term-based; a document must contain
// every term to match.
func (l *Library) Search(query string, limit int) ([]Match, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 5
	}

	docs, err := l.List()
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, doc := range docs {
		content, err := l.Get(doc.Name)
		if err != nil {
			l.logger.Warn("skipping unreadable document", zap.String("name", doc.Name), zap.Error(err))
			continue
		}
		lower := strings.ToLower(content)

		score := 0
		missing := false
		for _, term := range terms {
			n := strings.Count(lower, term)
			if n == 0 {
				missing = true
				break
			}
			score += n
		}
		if missing {
			continue
		}

		matches = append(matches, Match{
			Name:    doc.Name,
			Title:   doc.Title,
			Score:   score,
			Snippet: snippet(content, lower, terms[0]),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// resolve maps a document name to a path, rejecting names that would
// escape the library directory.
func (l *Library) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(l.dir, name+".md"), nil
}

// titleOf returns the first markdown heading of a document, falling
// back to the file name.
func (l *Library) titleOf(name string) string {
	content, err := l.Get(name)
	if err != nil {
		return name
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return name
}

// snippet extracts a short window of content around the first
// occurrence of term.
func snippet(content, lower, term string) string {
	const window = 160

	idx := strings.Index(lower, term)
	if idx < 0 {
		idx = 0
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(content) {
		end = len(content)
	}

	s := strings.TrimSpace(strings.ReplaceAll(content[start:end], "\n", " "))
	if start > 0 {
		s = "…" + s
	}
	if end < len(content) {
		s += "…"
	}
	return s
}
