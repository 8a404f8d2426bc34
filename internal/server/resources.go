package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/querier/internal/decl"
)

// Resources maps route names to watched declarations. The route name is the
// declaration's file name without its extension.
type Resources map[string]*decl.Watcher

// WatchDir loads every .cue, .yaml and .yml declaration in dir.
func WatchDir(dir string, opts ...decl.WatcherOption) (Resources, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read resources directory: %w", err)
	}

	resources := make(Resources)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".cue" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, dup := resources[name]; dup {
			return nil, fmt.Errorf("resource %q is declared twice in %s", name, dir)
		}

		w, err := decl.NewWatcher(filepath.Join(dir, entry.Name()), opts...)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", name, err)
		}
		resources[name] = w
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("no declarations found in %s", dir)
	}
	return resources, nil
}

// Resource returns the current declaration for name.
func (r Resources) Resource(name string) (*decl.Resource, bool) {
	w, ok := r[name]
	if !ok {
		return nil, false
	}
	return w.Current(), true
}

// Names returns the route names in sorted order.
func (r Resources) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run runs every watcher until ctx is cancelled and returns their errors
// joined.
func (r Resources) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for name, w := range r {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("resource %q: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
