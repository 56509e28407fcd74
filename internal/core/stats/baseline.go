package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BaselineRepository resolves the default document shape for a tenant.
type BaselineRepository interface {
	// For returns the baseline for a tenant. Tenants without a profile get
	// the zero baseline.
	For(tenantID string) Baseline
}

// FileSystemBaselineRepository loads per-tenant baseline profiles from
// *.yaml files in a directory. Each file declares one tenant. Profiles are
// loaded once at startup and cached in memory — no hot reload.
type FileSystemBaselineRepository struct {
	dir       string
	baselines map[string]Baseline // keyed by tenant ID
}

// rawBaseline is the on-disk YAML shape.
type rawBaseline struct {
	Tenant     string `yaml:"tenant"`
	Experience int64  `yaml:"experience"`
	Currency   int64  `yaml:"currency"`
	Level      int64  `yaml:"level"`
}

// NewFileSystemBaselineRepository creates a repository and eagerly loads all
// profiles from dir. A missing directory is valid (all-zero baselines).
func NewFileSystemBaselineRepository(dir string) (*FileSystemBaselineRepository, error) {
	repo := &FileSystemBaselineRepository{
		dir:       dir,
		baselines: make(map[string]Baseline),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemBaselineRepository) load() error {
	if r.dir == "" {
		return nil
	}

	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no profile directory — valid (zero baselines)
	}
	if err != nil {
		return fmt.Errorf("baseline profile dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("baseline profile path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading baseline profile dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading baseline profile %s: %w", path, err)
		}

		var raw rawBaseline
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing baseline profile %s: %w", path, err)
		}
		if raw.Tenant == "" {
			continue // skip empty / comment-only files
		}

		if raw.Experience < 0 || raw.Currency < 0 || raw.Level < 0 {
			return fmt.Errorf("baseline profile %s: negative baseline values", path)
		}
		if _, exists := r.baselines[raw.Tenant]; exists {
			return fmt.Errorf("baseline profile %s: duplicate tenant %q", path, raw.Tenant)
		}

		r.baselines[raw.Tenant] = Baseline{
			Experience: raw.Experience,
			Currency:   raw.Currency,
			Level:      raw.Level,
		}
	}
	return nil
}

// For returns the baseline for a tenant, or the zero baseline.
func (r *FileSystemBaselineRepository) For(tenantID string) Baseline {
	return r.baselines[tenantID]
}

// StaticBaselines is a fixed in-memory BaselineRepository, used when no
// profile directory is configured and in tests.
type StaticBaselines map[string]Baseline

func (s StaticBaselines) For(tenantID string) Baseline {
	return s[tenantID]
}
