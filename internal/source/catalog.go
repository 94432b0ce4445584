// Package source holds the data-source catalog: which backends exist,
// how to connect to them, and which join paths link their tables.
//
// The catalog is declared in CUE files under a directory, one `source`
// struct per data source plus an optional `link` list of join edges.
// CUE gives the catalog schema checking and file splitting for free; the
// loader only decodes the evaluated value.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Source describes one configured backend.
type Source struct {
	// Name is the catalog key; it also keys warehouse stores and cache
	// entries, so renaming a source invalidates both.
	Name string `json:"name"`

	// Kind selects the driver: mysql, mariadb, postgres, sqlite, or
	// warehouse.
	Kind string `json:"kind"`

	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// File is the database path for sqlite and warehouse sources.
	File string `json:"file,omitempty"`
}

// Fingerprint digests the connection credentials. The warehouse layer
// compares fingerprints to decide when a source's local store is stale.
func (s *Source) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{s.Kind, s.Host, fmt.Sprint(s.Port), s.Database, s.Username, s.Password, s.File} {
		h.Write([]byte(part))
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Catalog is the loaded set of sources and table links.
type Catalog struct {
	Sources map[string]*Source
	Links   *Links
}

// Get returns a source by name.
func (c *Catalog) Get(name string) (*Source, error) {
	s, ok := c.Sources[name]
	if !ok {
		return nil, &CatalogError{Code: "UNKNOWN_SOURCE", Message: fmt.Sprintf("data source %q is not configured", name)}
	}
	return s, nil
}

// CatalogError reports a problem loading or resolving the catalog.
type CatalogError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *CatalogError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load evaluates the CUE package in dir and decodes the catalog from it.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &CatalogError{Code: "NOT_FOUND", Message: fmt.Sprintf("catalog directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &CatalogError{Code: "NOT_FOUND", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CatalogError{Code: "LOAD_FAILED", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &CatalogError{Code: "LOAD_FAILED", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &CatalogError{Code: "BUILD_FAILED", Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return decodeCatalog(value)
}

func decodeCatalog(value cue.Value) (*Catalog, error) {
	cat := &Catalog{Sources: map[string]*Source{}, Links: &Links{}}

	sourcesVal := value.LookupPath(cue.ParsePath("source"))
	if sourcesVal.Exists() {
		iter, err := sourcesVal.Fields()
		if err != nil {
			return nil, &CatalogError{Code: "BUILD_FAILED", Message: fmt.Sprintf("iterating sources: %v", err)}
		}
		for iter.Next() {
			var s Source
			if err := iter.Value().Decode(&s); err != nil {
				return nil, &CatalogError{
					Code:    "INVALID_SOURCE",
					Message: fmt.Sprintf("source.%s: %v", iter.Label(), err),
					Pos:     iter.Value().Pos(),
				}
			}
			s.Name = iter.Label()
			if s.Kind == "" {
				return nil, &CatalogError{
					Code:    "INVALID_SOURCE",
					Message: fmt.Sprintf("source.%s: missing kind", iter.Label()),
					Pos:     iter.Value().Pos(),
				}
			}
			cat.Sources[s.Name] = &s
		}
	}

	linksVal := value.LookupPath(cue.ParsePath("link"))
	if linksVal.Exists() {
		var links []TableLink
		if err := linksVal.Decode(&links); err != nil {
			return nil, &CatalogError{Code: "INVALID_LINK", Message: fmt.Sprintf("link: %v", err), Pos: linksVal.Pos()}
		}
		for _, l := range links {
			cat.Links.Add(l)
		}
	}
	return cat, nil
}
