// Package volumes hands out host directories that are mounted into
// containers, one per named artifact.
package volumes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Allocator maps artifact names to directories under a base directory. It
// is safe for concurrent use.
type Allocator struct {
	mu   sync.Mutex
	base string
	dirs map[string]string
}

// New returns an allocator rooted at base, which is made absolute so the
// directories can be passed to docker as bind mounts.
func New(base string) (*Allocator, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve volume base %s: %w", base, err)
	}
	return &Allocator{base: abs, dirs: make(map[string]string)}, nil
}

// For returns the directory for name, creating it on first use.
func (a *Allocator) For(name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if dir, ok := a.dirs[name]; ok {
		return dir, nil
	}

	// <name>-<uuid>
	dir := filepath.Join(a.base, strings.ReplaceAll(name, string(filepath.Separator), "_")+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create volume for %s: %w", name, err)
	}
	a.dirs[name] = dir
	return dir, nil
}

// Lookup returns the directory for name without allocating one.
func (a *Allocator) Lookup(name string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir, ok := a.dirs[name]
	return dir, ok
}

// Names returns the allocated artifact names, sorted.
func (a *Allocator) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.dirs))
	for name := range a.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cleanup removes every allocated directory and forgets them.
func (a *Allocator) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for name, dir := range a.dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove volume %s: %w", name, err))
		}
	}
	a.dirs = make(map[string]string)
	return errors.Join(errs...)
}
