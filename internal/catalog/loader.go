package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed topic.schema.json
var topicSchemaJSON string

var topicSchema = mustCompileSchema(topicSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile topic schema: %v", err))
	}
	return schema
}

// Loader loads and caches the topic catalog from a directory of YAML files.
//
// Each topic lives in its own YAML file. A module without inline content takes its
// markdown from a sibling file named "<topic file stem>.<module id>.md".
type Loader struct {
	rootDir string
	topics  []Topic
	byID    map[string]int
	mu      sync.RWMutex
}

// NewLoader creates a new catalog loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	if info, err := os.Stat(rootDir); err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", rootDir)
	}

	l := &Loader{
		rootDir: rootDir,
		byID:    make(map[string]int),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "topics", len(l.topics), "root", rootDir)
	return l, nil
}

// ListTopics returns all loaded topics ordered by position, then ID.
func (l *Loader) ListTopics(_ context.Context) ([]Topic, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Topic(nil), l.topics...), nil
}

// GetTopic returns a topic by ID.
func (l *Loader) GetTopic(_ context.Context, id string) (Topic, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Topic{}, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	return l.topics[i], nil
}

func (l *Loader) loadAll() error {
	var topics []Topic
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		topic, ok, err := loadTopicFile(path)
		if err != nil {
			return err
		}
		if ok {
			topics = append(topics, topic)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Position != topics[j].Position {
			return topics[i].Position < topics[j].Position
		}
		return topics[i].ID < topics[j].ID
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range topics {
		if _, dup := l.byID[t.ID]; dup {
			slog.Warn("skipping duplicate topic id", "id", t.ID)
			continue
		}
		l.byID[t.ID] = len(l.topics)
		l.topics = append(l.topics, t)
	}
	return nil
}

// loadTopicFile parses one YAML file. It reports ok=false for files that are not
// topics or fail validation; those are logged and skipped.
func loadTopicFile(path string) (Topic, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topic{}, false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return Topic{}, false, nil
	}
	if _, ok := raw["id"]; !ok {
		return Topic{}, false, nil // Not a topic file
	}

	if err := ValidateDocument(raw); err != nil {
		slog.Warn("skipping topic that fails schema", "path", path, "error", err)
		return Topic{}, false, nil
	}

	var topic Topic
	if err := yaml.Unmarshal(data, &topic); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return Topic{}, false, nil
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for i := range topic.Modules {
		m := &topic.Modules[i]
		if m.Content != "" {
			continue
		}
		md, err := os.ReadFile(stem + "." + m.ID + ".md")
		if err == nil {
			m.Content = string(md)
		}
	}

	topic.applyDefaults()
	if err := topic.Validate(); err != nil {
		slog.Warn("skipping invalid topic", "path", path, "error", err)
		return Topic{}, false, nil
	}

	return topic, true, nil
}

// ValidateDocument checks a decoded topic document against the topic JSON schema.
func ValidateDocument(doc any) error {
	result, err := topicSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate topic: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("topic schema: %s", strings.Join(msgs, "; "))
}
