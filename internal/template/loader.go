package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/greenlight/model"
)

// Loader scans directories for YAML template files and seeds them into a
// Store at startup.
type Loader struct {
	store  Store
	logger *zap.Logger
}

// NewLoader creates a new template Loader.
func NewLoader(store Store, logger *zap.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// seedFile is the on-disk shape of a template seed. A file may carry one
// template or a list.
type seedFile struct {
	TenantID  string                   `yaml:"tenant_id"`
	Templates []model.WorkflowTemplate `yaml:"templates"`
}

// SeedAll recursively scans directories for *.yaml and *.yml files, validates
// each template, and upserts it into the store. Invalid templates fail the
// whole seed; a misconfigured deployment should not come up half-seeded.
func (l *Loader) SeedAll(ctx context.Context, directories []string) (int, error) {
	count := 0

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			n, err := l.seedFile(ctx, path)
			if err != nil {
				return fmt.Errorf("seeding %s: %w", path, err)
			}
			count += n
			return nil
		})
		if err != nil {
			return count, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return count, nil
}

func (l *Loader) seedFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	now := time.Now().UTC()
	for i, tpl := range file.Templates {
		if tpl.ID == "" {
			return 0, fmt.Errorf("templates[%d]: seed templates must carry an explicit id", i)
		}
		if err := Validate(tpl); err != nil {
			return 0, fmt.Errorf("templates[%d] (%s): %w", i, tpl.ID, err)
		}

		tpl.TenantID = file.TenantID
		tpl.Version = 1
		tpl.CreatedAt = now
		tpl.UpdatedAt = now
		if err := l.store.Upsert(ctx, tpl); err != nil {
			return 0, fmt.Errorf("templates[%d] (%s): %w", i, tpl.ID, err)
		}

		l.logger.Info("seeded workflow template",
			zap.String("template_id", tpl.ID),
			zap.String("tenant_id", tpl.TenantID),
			zap.Strings("content_types", tpl.ApplicableContentTypes),
			zap.String("source_file", path),
		)
	}

	return len(file.Templates), nil
}
