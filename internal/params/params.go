// Package params holds caller-supplied custom fields shown on the portal's
// WiFi form and bound back from its submission.
package params

import (
	"errors"
	"net/url"
	"sync"

	"github.com/muurk/wifimgr/internal/wifi"
)

// DefaultCapacity is the registry size when none is given.
const DefaultCapacity = 20

// LabelPlacement controls where a field's label is rendered.
type LabelPlacement int

const (
	LabelNone LabelPlacement = iota
	LabelBefore
	LabelAfter
)

var (
	ErrRegistryFull = errors.New("parameter registry is full")
	ErrMissingID    = errors.New("parameter has no id")
	ErrDuplicateID  = errors.New("parameter id already registered")
)

// Parameter is a custom form field.
type Parameter struct {
	ID          string
	Placeholder string
	Value       string
	MaxLength   int
	// CustomHTML holds extra input attributes, e.g. `type="checkbox"`.
	// Attributes outside the allowed set are stripped when rendering.
	CustomHTML     string
	LabelPlacement LabelPlacement
}

// NewParameter returns a field with its default value truncated to maxLength.
func NewParameter(id, placeholder, value string, maxLength int) *Parameter {
	p := &Parameter{
		ID:             id,
		Placeholder:    placeholder,
		MaxLength:      maxLength,
		LabelPlacement: LabelBefore,
	}
	p.SetValue(value)
	return p
}

// SetValue overwrites the value, truncating it to MaxLength bytes.
func (p *Parameter) SetValue(v string) {
	if p.MaxLength > 0 {
		v = wifi.Truncate(v, p.MaxLength)
	}
	p.Value = v
}

// Registry keeps parameters in insertion order. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	params   []*Parameter
	byID     map[string]*Parameter
}

// NewRegistry returns a registry that accepts up to capacity parameters.
// A non-positive capacity selects DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		byID:     make(map[string]*Parameter),
	}
}

// Add registers p. The registry keeps the pointer, so later binds are
// visible to the caller through p.
func (r *Registry) Add(p *Parameter) error {
	if p == nil || p.ID == "" {
		return ErrMissingID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.params) >= r.capacity {
		return ErrRegistryFull
	}
	if _, ok := r.byID[p.ID]; ok {
		return ErrDuplicateID
	}
	r.params = append(r.params, p)
	r.byID[p.ID] = p
	return nil
}

// AddParameter is Add for callers that only need accept or reject.
func (r *Registry) AddParameter(p *Parameter) bool {
	return r.Add(p) == nil
}

// All returns the parameters in insertion order.
func (r *Registry) All() []*Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Parameter(nil), r.params...)
}

// Get looks a parameter up by id.
func (r *Registry) Get(id string) (*Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// Len is the number of registered parameters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.params)
}

// Bind copies submitted values into the registered parameters. A field
// missing from values becomes empty.
func (r *Registry) Bind(values url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.params {
		p.SetValue(values.Get(p.ID))
	}
}

// Values returns id → value for every parameter.
func (r *Registry) Values() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.params))
	for _, p := range r.params {
		out[p.ID] = p.Value
	}
	return out
}

// Restore sets values previously returned by Values. Unknown ids are ignored.
func (r *Registry) Restore(values map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range values {
		if p, ok := r.byID[id]; ok {
			p.SetValue(v)
		}
	}
}
