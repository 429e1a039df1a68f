package signalmap

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Registry holds every SignalMapper this binary knows about (built-in
// plus, on linux and darwin builds of cmd/wavedbg-server, dynamically loaded ones)
// and resolves one by name subject to a host-declared API version
// constraint, the way the teacher's package resolver gates dependency
// versions against requirement constraints.
type Registry struct {
	hostAPIVersion *semver.Version
	mappers        map[string]SignalMapper
}

// NewRegistry builds an empty registry gated at hostAPIVersion: a mapper is
// only resolvable if its own APIVersion() satisfies a constraint expressed
// against this version (see Resolve).
func NewRegistry(hostAPIVersion string) (*Registry, error) {
	v, err := semver.NewVersion(hostAPIVersion)
	if err != nil {
		return nil, fmt.Errorf("signalmap: invalid host API version %q: %w", hostAPIVersion, err)
	}

	return &Registry{hostAPIVersion: v, mappers: make(map[string]SignalMapper)}, nil
}

// Register adds a mapper under its own Name(). A later call with the same
// name replaces the earlier one.
func (r *Registry) Register(m SignalMapper) { r.mappers[m.Name()] = m }

// Names returns every registered mapper name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.mappers))
	for n := range r.mappers {
		out = append(out, n)
	}

	sort.Strings(out)

	return out
}

// Resolve looks up name and checks its APIVersion() against constraint
// (a semver constraint string such as ">=1.0.0, <2.0.0"). An empty
// constraint accepts any version whose major component matches the host's.
func (r *Registry) Resolve(name, constraint string) (SignalMapper, error) {
	m, ok := r.mappers[name]
	if !ok {
		return nil, fmt.Errorf("signalmap: no mapper registered as %q (have: %v)", name, r.Names())
	}

	mv, err := semver.NewVersion(m.APIVersion())
	if err != nil {
		return nil, fmt.Errorf("signalmap: mapper %q has invalid API version %q: %w", name, m.APIVersion(), err)
	}

	if constraint == "" {
		if mv.Major() != r.hostAPIVersion.Major() {
			return nil, fmt.Errorf("signalmap: mapper %q API version %s is not major-compatible with host %s",
				name, mv, r.hostAPIVersion)
		}

		return m, nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("signalmap: invalid constraint %q: %w", constraint, err)
	}

	if !c.Check(mv) {
		return nil, fmt.Errorf("signalmap: mapper %q API version %s does not satisfy %q", name, mv, constraint)
	}

	return m, nil
}
