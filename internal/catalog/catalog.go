// Package catalog holds the static service catalog: an ordered mapping from
// service name to the key-issuance endpoint for that service. The catalog is
// loaded once at startup and immutable thereafter; every service name used by
// a command or panel button must resolve here before any network call is made.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Entry pairs a service name with its issuance endpoint.
type Entry struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// Catalog is an ordered, immutable service directory.
type Catalog struct {
	entries []Entry
	index   map[string]string
}

// New builds a catalog from entries, preserving order. Duplicate names and
// blank fields are rejected.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		endpoint := strings.TrimSpace(e.Endpoint)
		if name == "" || endpoint == "" {
			return nil, fmt.Errorf("catalog: entry with blank name or endpoint: %+v", e)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate service %q", name)
		}
		c.entries = append(c.entries, Entry{Name: name, Endpoint: endpoint})
		c.index[name] = endpoint
	}
	return c, nil
}

// LoadFile reads a catalog from a JSON file. Two shapes are accepted: an
// ordered array of {name, endpoint} objects, or a plain name->endpoint object
// (sorted by name, since JSON objects carry no order).
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []Entry
	if err := json.Unmarshal(raw, &list); err == nil {
		return New(list)
	}

	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("catalog: %s: not an entry array or name map: %w", path, err)
	}
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, n := range names {
		entries = append(entries, Entry{Name: n, Endpoint: m[n]})
	}
	return New(entries)
}

// Resolve returns the issuance endpoint for a service name.
func (c *Catalog) Resolve(name string) (string, bool) {
	endpoint, ok := c.index[name]
	return endpoint, ok
}

// Names returns the service names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Name
	}
	return out
}

// Entries returns a copy of the ordered catalog entries.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of services in the catalog.
func (c *Catalog) Len() int { return len(c.entries) }
