package template

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/fault"
)

// Registry holds the templates the engine may start inspections from.
// Templates are immutable once registered; a revised checklist registers
// under a new id or version.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*contracts.Template
	logger    *slog.Logger
	clock     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		templates: make(map[string]*contracts.Template),
		logger:    logger,
		clock:     time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.clock = clock
	return r
}

// Register adds a template. Re-registering an existing id is rejected.
func (r *Registry) Register(tpl *contracts.Template) error {
	if tpl == nil || tpl.ID == "" {
		return fault.New(fault.InvalidArgument, "template id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[tpl.ID]; exists {
		return fault.New(fault.InvalidArgument, "template %s already registered", tpl.ID)
	}
	r.templates[tpl.ID] = tpl
	r.logger.Info("template registered",
		"template_id", tpl.ID,
		"version", tpl.Version,
		"items", len(tpl.FlatItems()))
	return nil
}

// LoadDir registers every manifest (*.yaml, *.yml, *.json) in dir.
func (r *Registry) LoadDir(dir string) error {
	paths, err := manifestPaths(dir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		tpl, err := LoadFile(p, r.clock)
		if err != nil {
			return err
		}
		if err := r.Register(tpl); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (*contracts.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "template %s not found", id)
	}
	return tpl, nil
}

// List returns all registered templates sorted by name, then id.
func (r *Registry) List() []*contracts.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*contracts.Template, 0, len(r.templates))
	for _, tpl := range r.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
