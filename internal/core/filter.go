package core

import "strings"

// CapabilityFilter ограничивает набор capability, доступных через шлюз.
// Пустой список или "*" открывает все capability рантайма.
type CapabilityFilter struct {
	all     bool
	allowed map[string]struct{}
}

// NewCapabilityFilter создает фильтр из списка имен.
func NewCapabilityFilter(names []string) *CapabilityFilter {
	f := &CapabilityFilter{allowed: make(map[string]struct{}, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if name == "*" {
			f.all = true
			continue
		}
		f.allowed[name] = struct{}{}
	}
	if len(f.allowed) == 0 {
		f.all = true
	}
	return f
}

// Allows сообщает, открыта ли capability. nil-фильтр пропускает все.
func (f *CapabilityFilter) Allows(name string) bool {
	if f == nil || f.all {
		return true
	}
	_, ok := f.allowed[name]
	return ok
}

// Check возвращает InvalidRequest для скрытой capability.
func (f *CapabilityFilter) Check(name string) error {
	if f.Allows(name) {
		return nil
	}
	return Errorf(KindInvalidRequest, "capability %q is not exposed by this gateway", name)
}

// Apply оставляет только открытые capability, сохраняя порядок.
func (f *CapabilityFilter) Apply(caps []Capability) []Capability {
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if f.Allows(c.Name) {
			out = append(out, c)
		}
	}
	return out
}
