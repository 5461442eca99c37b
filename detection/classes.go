package detection

import (
	"sort"
	"sync"
)

// UnknownClassName is the label drawn for class ids missing from the table.
const UnknownClassName = "unknown"

// Class is one detection label.
type Class struct {
	// The integer id emitted by the model.
	ID int `json:"id" yaml:"id"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// DefaultClasses are the labels of the bundled object detection model.
var DefaultClasses = []Class{
	{ID: 0, Name: "steve"},
	{ID: 1, Name: "sword"},
	{ID: 2, Name: "dirt"},
	{ID: 3, Name: "enderman"},
}

// ClassNames maps class ids to labels. It is safe for concurrent use.
type ClassNames struct {
	mu    sync.RWMutex
	names map[int]string
}

// NewClassNames builds a table from the given classes. Later entries win on
// duplicate ids.
func NewClassNames(classes ...Class) *ClassNames {
	c := &ClassNames{names: make(map[int]string, len(classes))}
	for _, cls := range classes {
		c.names[cls.ID] = cls.Name
	}
	return c
}

// NewClassNamesFromMap builds a table from an id to name map, as found in
// configuration files.
func NewClassNamesFromMap(m map[int]string) *ClassNames {
	c := &ClassNames{names: make(map[int]string, len(m))}
	for id, name := range m {
		c.names[id] = name
	}
	return c
}

// Name returns the label for id, or UnknownClassName.
func (c *ClassNames) Name(id int) string {
	if c == nil {
		return UnknownClassName
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.names[id]; ok && name != "" {
		return name
	}
	return UnknownClassName
}

// Set registers or renames a class.
func (c *ClassNames) Set(id int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
}

// Classes returns the table sorted by id.
func (c *ClassNames) Classes() []Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Class, 0, len(c.names))
	for id, name := range c.names {
		out = append(out, Class{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
