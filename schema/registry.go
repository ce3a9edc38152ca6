package schema

import (
	"fmt"
	"sync"
)

var (
	registry     = make(map[string]*Table)
	registryLock sync.RWMutex
)

// Register adds a table to the process-global registry. It is meant to be
// called once per table at definition time, usually from an init function.
func Register(t *Table) error {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, ok := registry[t.name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, t.name)
	}
	registry[t.name] = t
	return nil
}

// Get returns the registered table with the given name.
func Get(name string) (*Table, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return t, nil
}
