package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/botflow/pkg/domain"
)

var extensions = []string{".json", ".yaml", ".yml"}

// ErrInvalidBotID is returned for ids that cannot be used as file names.
var ErrInvalidBotID = errors.New("invalid bot id")

// Catalog implements ports.FlowSource over a directory: the file
// <dir>/<botID>.{json,yaml,yml} holds the published flow of botID.
type Catalog struct {
	dir string
	mu  sync.RWMutex
}

// NewCatalog creates a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir returns the catalog root.
func (c *Catalog) Dir() string {
	return c.dir
}

func checkID(botID string) error {
	if botID == "" || botID == "." || botID == ".." || strings.ContainsAny(botID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidBotID, botID)
	}
	return nil
}

// find returns the file holding botID, or "" if there is none.
func (c *Catalog) find(botID string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(c.dir, botID+ext)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to stat flow file: %w", err)
		}
	}
	return "", nil
}

func (c *Catalog) LoadFlow(ctx context.Context, botID string) (*domain.FlowDefinition, error) {
	if err := checkID(botID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBotNotFound, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	path, err := c.find(botID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrBotNotFound, botID)
	}
	return ReadFlow(path)
}

func (c *Catalog) ListFlows(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read flow directory: %w", err)
	}

	seen := make(map[string]struct{})
	ids := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "tmp-") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Publish writes def as the flow of botID, replacing any previous file.
// An existing YAML flow stays YAML; new flows are written as JSON.
func (c *Catalog) Publish(ctx context.Context, botID string, def *domain.FlowDefinition) error {
	if err := checkID(botID); err != nil {
		return err
	}
	if def == nil {
		return fmt.Errorf("flow definition for %q is nil", botID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path, err := c.find(botID)
	if err != nil {
		return err
	}
	if path == "" {
		path = filepath.Join(c.dir, botID+".json")
	}
	return WriteFlow(path, def)
}

// Unpublish removes every file holding botID. Missing flows are not an error.
func (c *Catalog) Unpublish(ctx context.Context, botID string) error {
	if err := checkID(botID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ext := range extensions {
		err := os.Remove(filepath.Join(c.dir, botID+ext))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove flow file: %w", err)
		}
	}
	return nil
}
