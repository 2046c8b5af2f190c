// Package corpus loads the rule and approved-template corpora from YAML
// seed files into the vector store at startup.
package corpus

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

// Entry is one seed document: rule, guideline or approved template.
type Entry struct {
	ID       string         `yaml:"id"`
	Content  string         `yaml:"content"`
	Metadata map[string]any `yaml:"metadata"`
}

// File is the seed-file layout: the two corpora in one document.
type File struct {
	Rules     []Entry `yaml:"rules"`
	Templates []Entry `yaml:"templates"`
}

// Load parses a seed file. Entries without an id get a generated one.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse corpus file: %w", err)
	}
	for i := range f.Rules {
		if f.Rules[i].ID == "" {
			f.Rules[i].ID = "rule-" + uuid.NewString()
		}
	}
	for i := range f.Templates {
		if f.Templates[i].ID == "" {
			f.Templates[i].ID = "tpl-" + uuid.NewString()
		}
	}
	return &f, nil
}

// Seed upserts the corpora into their stores. Empty sections are skipped.
func Seed(ctx context.Context, log *logger.Logger, f *File, rules, templates chroma.VectorStore) error {
	if len(f.Rules) > 0 {
		if err := rules.Upsert(ctx, toDocuments(f.Rules)); err != nil {
			return fmt.Errorf("seed rule corpus: %w", err)
		}
		log.Info("rule corpus seeded", "count", len(f.Rules))
	}
	if len(f.Templates) > 0 {
		if err := templates.Upsert(ctx, toDocuments(f.Templates)); err != nil {
			return fmt.Errorf("seed template corpus: %w", err)
		}
		log.Info("approved-template corpus seeded", "count", len(f.Templates))
	}
	return nil
}

func toDocuments(entries []Entry) []chroma.Document {
	docs := make([]chroma.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, chroma.Document{
			ID:       e.ID,
			Text:     e.Content,
			Metadata: e.Metadata,
		})
	}
	return docs
}
