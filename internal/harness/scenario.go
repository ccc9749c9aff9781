package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/google/uuid"

	"github.com/roach88/resultsets/internal/fanout"
	"github.com/roach88/resultsets/internal/querysql"
	"github.com/roach88/resultsets/internal/store"
)

// Scenario describes one end-to-end fan-out check.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Query is the single-placeholder template run once per key.
	Query string `yaml:"query"`

	// Users seeds the store. Nil means store.FixtureUsers().
	Users []UserFixture `yaml:"users,omitempty"`

	// Keys are bound into Query. Nil means the ids of Users.
	Keys []string `yaml:"keys,omitempty"`

	// Faults fail chosen dispatches instead of running them.
	Faults []Fault `yaml:"faults,omitempty"`

	// Policy is the stream error policy: "scope" (default) or "terminate".
	Policy string `yaml:"policy,omitempty"`

	Expect Expectation `yaml:"expect"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-"`
}

// UserFixture is one seeded row.
type UserFixture struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Fault fails the query dispatched at Index with Message.
type Fault struct {
	Index   int    `yaml:"index"`
	Message string `yaml:"message"`
}

// Expectation is what every collection mode must produce.
type Expectation struct {
	// Values is the multiset of first-column values across successful
	// queries.
	Values []string `yaml:"values"`

	// Failures is the number of queries expected to fail.
	Failures int `yaml:"failures"`
}

// LoadScenario reads, schema-checks and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(path, data)
	if err != nil {
		return nil, err
	}
	sc.Path = path
	return sc, nil
}

// ParseScenario checks data against the scenario schema and decodes it.
// path is used in error messages only.
func ParseScenario(path string, data []byte) (*Scenario, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateDocument(path, doc); err != nil {
		return nil, err
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml scenario under dir, sorted by path.
// A non-empty filter is a filepath.Match pattern applied to scenario names.
func LoadDir(dir, filter string) ([]*Scenario, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	var scenarios []*Scenario
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, sc.Name); !ok {
				continue
			}
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if err := querysql.Validate(s.Query); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if _, err := fanout.ParseErrorPolicy(s.Policy); err != nil {
		return err
	}
	for i, u := range s.Users {
		if _, err := uuid.Parse(u.ID); err != nil {
			return fmt.Errorf("users[%d]: invalid id %q: %w", i, u.ID, err)
		}
	}

	n := len(s.keys())
	seen := make(map[int]bool, len(s.Faults))
	for i, f := range s.Faults {
		if f.Index >= n {
			return fmt.Errorf("faults[%d]: index %d out of range for %d keys", i, f.Index, n)
		}
		if seen[f.Index] {
			return fmt.Errorf("faults[%d]: duplicate index %d", i, f.Index)
		}
		seen[f.Index] = true
	}
	return nil
}

// users returns the rows to seed.
func (s *Scenario) users() []store.User {
	if s.Users == nil {
		return store.FixtureUsers()
	}
	users := make([]store.User, len(s.Users))
	for i, u := range s.Users {
		users[i] = store.User{ID: uuid.MustParse(u.ID), Name: u.Name}
	}
	return users
}

// keys returns the partition keys to fan out over.
func (s *Scenario) keys() []string {
	if s.Keys != nil {
		return s.Keys
	}
	users := s.users()
	keys := make([]string, len(users))
	for i, u := range users {
		keys[i] = u.ID.String()
	}
	return keys
}

func (s *Scenario) faultMap() map[int]string {
	faults := make(map[int]string, len(s.Faults))
	for _, f := range s.Faults {
		faults[f.Index] = f.Message
	}
	return faults
}
