// Package catalog manages the label dictionary mapping anatomical label IDs
// to names and display colors. Catalogs are explicitly constructed and
// explicitly passed; there is no package-level cached instance. When the
// color configuration file is absent, deterministic fallback colors are
// generated from the label names so that repeated runs agree.
package catalog

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Entry is one label record: a non-negative ID, a human-readable anatomical
// name and an RGB display color.
type Entry struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Color [3]uint8 `json:"color"`
}

// Catalog is a validated, immutable-by-convention set of label entries.
type Catalog struct {
	byID   map[int]Entry
	byName map[string]int
}

// New builds a catalog from the given entries. Negative and duplicate IDs
// are rejected; duplicate names are allowed (the first one wins for
// name-to-ID lookup).
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[int]Entry, len(entries)),
		byName: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.ID < 0 {
			return nil, fmt.Errorf("label %q has negative ID %d", e.Name, e.ID)
		}
		if _, ok := c.byID[e.ID]; ok {
			return nil, fmt.Errorf("duplicate label ID %d", e.ID)
		}
		c.byID[e.ID] = e
		if _, ok := c.byName[e.Name]; !ok {
			c.byName[e.Name] = e.ID
		}
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Has reports whether the given label ID is known.
func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// Name returns the name for a label ID.
func (c *Catalog) Name(id int) (string, bool) {
	e, ok := c.byID[id]
	return e.Name, ok
}

// Color returns the display color for a label ID.
func (c *Catalog) Color(id int) ([3]uint8, bool) {
	e, ok := c.byID[id]
	return e.Color, ok
}

// IDByName returns the label ID carrying the given name.
func (c *Catalog) IDByName(name string) (int, bool) {
	id, ok := c.byName[name]
	return id, ok
}

// Entries returns all entries sorted by ID.
func (c *Catalog) Entries() []Entry {
	entries := make([]Entry, 0, len(c.byID))
	for _, e := range c.byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Refresh replaces the catalog contents with a freshly validated entry set.
// The caller owns the reload trigger; nothing reloads implicitly.
func (c *Catalog) Refresh(entries []Entry) error {
	fresh, err := New(entries)
	if err != nil {
		return err
	}
	c.byID = fresh.byID
	c.byName = fresh.byName
	return nil
}

// LoadFile reads a label color configuration file, a JSON array of
// {id, name, color} records. A missing file is not an error: found is false
// and the caller decides whether to generate fallback colors.
func LoadFile(path string) (c *Catalog, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error reading label colors: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("error parsing label colors: %w", err)
	}
	c, err = New(entries)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// LoadNames reads a label dictionary file, a JSON object mapping label name
// to ID. Missing files are reported the same way as LoadFile.
func LoadNames(path string) (names map[string]int, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error reading label dictionary: %w", err)
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, false, fmt.Errorf("error parsing label dictionary: %w", err)
	}
	return names, true, nil
}

// FallbackColor derives a deterministic bright color from a label name.
// The same name always maps to the same RGB triple across runs.
func FallbackColor(name string) [3]uint8 {
	digest := sha1.Sum([]byte(name))
	return [3]uint8{
		64 + digest[0]%192,
		64 + digest[1]%192,
		64 + digest[2]%192,
	}
}

// GenerateFallback synthesizes a catalog from a name-to-ID dictionary when
// no color configuration exists. Background (ID 0) is always black; every
// other label gets its deterministic fallback color.
func GenerateFallback(names map[string]int) (*Catalog, error) {
	entries := make([]Entry, 0, len(names))
	for name, id := range names {
		e := Entry{ID: id, Name: name}
		if id != 0 {
			e.Color = FallbackColor(name)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return New(entries)
}
