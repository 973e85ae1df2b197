package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Loader resolves table documents from a directory of JSON files, one file
// per table, optionally nested under a connection-named subdirectory:
//
//	<root>/users.json
//	<root>/db1/users.json
type Loader struct {
	root string
	log  *zap.Logger
}

// NewLoader creates a loader rooted at the given document directory.
func NewLoader(root string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{root: root, log: log}
}

// Root returns the document store root directory.
func (l *Loader) Root() string {
	return l.root
}

// resolvePath returns the path of the document for model. When a connection
// is given the connection-qualified path is tried first, falling back to the
// unqualified path. The returned connection is the one implied by the path
// actually used, or "" for the unqualified path.
func (l *Loader) resolvePath(model, connection string) (path, conn string, err error) {
	if connection != "" {
		qualified := filepath.Join(l.root, connection, model+".json")
		if fileExists(qualified) {
			return qualified, connection, nil
		}
	}
	unqualified := filepath.Join(l.root, model+".json")
	if fileExists(unqualified) {
		return unqualified, "", nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, model)
}

// Load reads, parses, and default-fills the document for model. The result is
// raw: callers run Validate and Normalize before trusting or caching it.
func (l *Loader) Load(model, connection string) (*Schema, error) {
	path, sourceConn, err := l.resolvePath(model, connection)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema document %s: %w", path, err)
	}

	var doc Schema
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema document %s: %w", path, err)
	}

	doc.SourceConnection = sourceConn
	applyDefaults(&doc)

	l.log.Debug("loaded schema document",
		zap.String("model", model),
		zap.String("path", path),
		zap.String("connection", sourceConn))

	return &doc, nil
}

// List returns the model names of every document at the store root,
// unqualified paths only.
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema root %s: %w", l.root, err)
	}
	var models []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		models = append(models, name[:len(name)-len(".json")])
	}
	return models, nil
}

// applyDefaults fills defaults for keys absent in the source document. An
// explicit value, including explicit false, is never overwritten.
func applyDefaults(doc *Schema) {
	if doc.PrimaryKey == "" {
		doc.PrimaryKey = "id"
	}
	if doc.Timestamps == nil {
		t := true
		doc.Timestamps = &t
	}
	if doc.SoftDelete == nil {
		f := false
		doc.SoftDelete = &f
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]*Field)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
