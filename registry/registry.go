// Package registry implements the location catalogue: parsing
// locations.json once at startup and filtering/sorting the in-memory
// catalogue by name or alias patterns, with both exact and case-insensitive
// wildcard matching against a plain {"locations":[...]} shape.
package registry

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/werrors"
)

// Criteria selects and orders locations (and, by extension, the histories
// of matched locations elsewhere in the backend). A pattern of "*" alone,
// or present anywhere in Filters, matches every location.
type Criteria struct {
	Filters         []string
	CaseInsensitive bool
	SortByName      bool
}

// MatchesAll reports whether c has no effective filter (an empty list, or a
// list containing the literal wildcard "*").
func (c Criteria) MatchesAll() bool {
	if len(c.Filters) == 0 {
		return true
	}
	for _, f := range c.Filters {
		if f == "*" {
			return true
		}
	}
	return false
}

// Registry holds the once-loaded location catalogue, guarded by a mutex so
// AddLocation can be called from the loader's consumer thread safely.
type Registry struct {
	mu        sync.RWMutex
	locations []model.Location
	byAlias   map[string]model.Location
}

// Load parses the catalogue file into a Registry. It does not fail if the
// catalogue is absent; callers typically create one before any location
// exists, so an absent file yields an empty Registry.
func Load(file *datadir.WeatherFile) (*Registry, error) {
	r := &Registry{byAlias: map[string]model.Location{}}
	if !file.Exists() {
		return r, nil
	}

	rc, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var catalogue model.Catalogue
	if err := json.NewDecoder(rc).Decode(&catalogue); err != nil {
		return nil, werrors.Wrap(werrors.ErrCorruptData, "registry.Load", file.Path(), err)
	}

	for _, loc := range catalogue.Locations {
		alias := model.NormalizedAlias(loc.Alias)
		loc.Alias = alias
		r.locations = append(r.locations, loc)
		r.byAlias[alias] = loc
	}
	return r, nil
}

// Save writes the current in-memory catalogue back to file.
func (r *Registry) Save(file *datadir.WeatherFile) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, err := file.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	enc := json.NewEncoder(w)
	return enc.Encode(model.Catalogue{Locations: r.locations})
}

// Get returns the location for alias, or ErrNotFound.
func (r *Registry) Get(alias string) (model.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.byAlias[model.NormalizedAlias(alias)]
	if !ok {
		return model.Location{}, werrors.New(werrors.ErrNotFound, "registry.Get", alias)
	}
	return loc, nil
}

// GetExactlyOne resolves criteria to exactly one location, returning
// ErrAmbiguous if more than one matches and ErrNotFound if none do.
func (r *Registry) GetExactlyOne(c Criteria) (model.Location, error) {
	matches := r.Search(c)
	switch len(matches) {
	case 0:
		return model.Location{}, werrors.New(werrors.ErrNotFound, "registry.GetExactlyOne", strings.Join(c.Filters, ","))
	case 1:
		return matches[0], nil
	default:
		return model.Location{}, werrors.New(werrors.ErrAmbiguous, "registry.GetExactlyOne", strings.Join(c.Filters, ","))
	}
}

// Search returns every location matching c, sorted by name ascending when
// c.SortByName is set.
func (r *Registry) Search(c Criteria) []model.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []model.Location
	if c.MatchesAll() {
		matches = append(matches, r.locations...)
	} else {
		for _, loc := range r.locations {
			if matchesAny(loc, c.Filters, c.CaseInsensitive) {
				matches = append(matches, loc)
			}
		}
	}

	if c.SortByName {
		sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	}
	return matches
}

// All returns every registered location, unfiltered and unsorted.
func (r *Registry) All() []model.Location {
	return r.Search(Criteria{})
}

func matchesAny(loc model.Location, patterns []string, caseInsensitive bool) bool {
	for _, p := range patterns {
		if matches(loc.Name, p, caseInsensitive) || matches(loc.Alias, p, caseInsensitive) {
			return true
		}
	}
	return false
}

// matches implements the two matching modes: exact (case-sensitive)
// and case-insensitive, both supporting "*" as a wildcard. A bare "*"
// matches anything; an embedded "*" splits the pattern into a prefix/suffix
// anchor (the translation to SQL "%" happens in the database-backed
// registry variant, not here).
func matches(value, pattern string, caseInsensitive bool) bool {
	if pattern == "*" {
		return true
	}
	cmpValue, cmpPattern := value, pattern
	if caseInsensitive {
		cmpValue = strings.ToLower(value)
		cmpPattern = strings.ToLower(pattern)
	}
	if !strings.Contains(cmpPattern, "*") {
		return cmpValue == cmpPattern
	}
	parts := strings.SplitN(cmpPattern, "*", 2)
	prefix, suffix := parts[0], parts[1]
	return strings.HasPrefix(cmpValue, prefix) && strings.HasSuffix(cmpValue, suffix) && len(cmpValue) >= len(prefix)+len(suffix)
}

// AddLocation validates and appends a new location to the in-memory
// registry: the alias must already be a valid ZIP-entry/filename stem.
// Persisting the updated catalogue back to locations.json is the caller's
// responsibility.
func (r *Registry) AddLocation(loc model.Location) error {
	alias := model.NormalizedAlias(loc.Alias)
	if !model.ValidAlias(alias) {
		return werrors.New(werrors.ErrCorruptData, "registry.AddLocation", loc.Alias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAlias[alias]; exists {
		return werrors.New(werrors.ErrAlreadyExists, "registry.AddLocation", alias)
	}
	loc.Alias = alias
	r.locations = append(r.locations, loc)
	r.byAlias[alias] = loc
	return nil
}

// SQLPattern translates a wildcard pattern ("*") into the SQL LIKE
// wildcard ("%") the database-backed registry operations use for
// name/alias filtering.
func SQLPattern(pattern string) string {
	return strings.ReplaceAll(pattern, "*", "%")
}
