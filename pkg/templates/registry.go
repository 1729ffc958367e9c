// Package templates provides the built-in producers and the registry used to look
// them up by name.
package templates

import (
	"fmt"
	"sort"

	"pkg.jsn.cam/synthgen/pkg/synthgen"
	"pkg.jsn.cam/synthgen/pkg/synthgen/randstate"
)

// Constructor builds a template instance. location is an optional resource path
// (a vocabulary file for the built-ins); cfg is the decoded config document.
type Constructor func(location string, cfg map[string]any, state *randstate.State) (synthgen.Producer, error)

// Registry maps template names to constructors
var Registry = map[string]Constructor{
	"actioncount": NewActionCount,
	"maxvalue":    NewMaxValue,
	"urldedup":    NewURLDedup,
}

// Factory implements synthgen.Factory over Registry.
func Factory(tmpl synthgen.Template, state *randstate.State) (synthgen.Producer, error) {
	ctor, exists := Registry[tmpl.Name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", synthgen.ErrUnknownTemplate, tmpl.Name)
	}
	return ctor(tmpl.Location, tmpl.Config, state)
}

// List returns all registered template names, sorted.
func List() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description of a registered template.
func Describe(name string) (string, error) {
	p, err := Factory(synthgen.Template{Name: name}, randstate.New())
	if err != nil {
		return "", err
	}
	if d, ok := p.(interface{ Description() string }); ok {
		return d.Description(), nil
	}
	return "", nil
}
