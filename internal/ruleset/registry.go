package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aescanero/dago-node-condition/internal/router"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions read as rule sets.
var Extensions = []string{".yaml", ".yml"}

// File is the on-disk form of a named rule set.
//
//	name: orders
//	fallback: manual_review
//	rules:
//	  - name: paid
//	    when: {status: {"=": paid}}
//	    target: ship
type File struct {
	Name              string `yaml:"name"`
	router.NodeConfig `yaml:",inline"`
}

// Validator checks a routing configuration and returns its warnings.
// *router.Router satisfies it.
type Validator interface {
	ValidateConfig(config *router.NodeConfig) ([]string, error)
}

// Registry holds the named rule sets loaded from a directory. It satisfies
// router.RuleSource.
type Registry struct {
	mu        sync.RWMutex
	sets      map[string]*router.NodeConfig
	validator Validator
	logger    *zap.Logger
	onLoad    func(n int)
}

// NewRegistry creates an empty registry. validator may be nil, in which case
// rule sets are only decoded.
func NewRegistry(validator Validator, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sets:      make(map[string]*router.NodeConfig),
		validator: validator,
		logger:    logger,
	}
}

// OnLoad registers a callback invoked with the rule set count after every
// successful Load.
func (r *Registry) OnLoad(fn func(n int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLoad = fn
}

// Get returns the named rule set. The returned config must not be modified.
func (r *Registry) Get(name string) (*router.NodeConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.sets[name]
	return cfg, ok
}

// Names returns the loaded rule set names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded rule sets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

// Load reads every rule set file in dir and replaces the registry contents.
// All problems are reported together; on any error the previous contents
// are kept.
func (r *Registry) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read rule set directory: %w", err)
	}

	sets := make(map[string]*router.NodeConfig)
	origin := make(map[string]string)
	var result *multierror.Error

	for _, entry := range entries {
		if entry.IsDir() || !IsRuleSetFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		file, warnings, err := r.LoadFile(path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, w := range warnings {
			r.logger.Warn("rule set warning",
				zap.String("rule_set", file.Name),
				zap.String("path", path),
				zap.String("warning", w),
			)
		}
		if prev, ok := origin[file.Name]; ok {
			result = multierror.Append(result, fmt.Errorf("%s: rule set %q already defined in %s", path, file.Name, prev))
			continue
		}
		cfg := file.NodeConfig
		sets[file.Name] = &cfg
		origin[file.Name] = path
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	r.mu.Lock()
	r.sets = sets
	onLoad := r.onLoad
	r.mu.Unlock()

	r.logger.Info("rule sets loaded",
		zap.String("dir", dir),
		zap.Strings("names", r.Names()),
	)
	if onLoad != nil {
		onLoad(len(sets))
	}
	return nil
}

// LoadFile decodes and validates a single rule set file. A file without a
// name is named after its base name.
func (r *Registry) LoadFile(path string) (*File, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	file, err := Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if file.Name == "" {
		file.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var warnings []string
	if r.validator != nil {
		warnings, err = r.validator.ValidateConfig(&file.NodeConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: rule set %q: %w", path, file.Name, err)
		}
	}
	return file, warnings, nil
}

// Decode parses a rule set document. Unknown keys are rejected.
func Decode(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty rule set")
		}
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}
	if file.RuleSet != "" {
		return nil, fmt.Errorf("rule_set is not allowed inside a rule set file")
	}
	return &file, nil
}

// IsRuleSetFile reports whether name has a rule set extension and is not
// hidden.
func IsRuleSetFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, valid := range Extensions {
		if ext == valid {
			return true
		}
	}
	return false
}
