package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/framecore/internal/core/phase"
)

// SystemEntry declares one scripted system.
type SystemEntry struct {
	Name      string `yaml:"name"`
	Script    string `yaml:"script"` // relative to the scripting dir
	Phase     string `yaml:"phase"`  // empty means Update
	Priority  int    `yaml:"priority"`
	InitOrder int    `yaml:"init_order"`

	phase phase.Phase
}

// ResolvedPhase returns the parsed phase, Update when none was given.
func (e *SystemEntry) ResolvedPhase() phase.Phase { return e.phase }

type systemFile struct {
	Systems []SystemEntry `yaml:"systems"`
}

// SystemTable holds the scripted systems in manifest order.
type SystemTable struct {
	entries []SystemEntry
	byName  map[string]*SystemEntry
}

// LoadSystemManifest loads systems.yaml.
func LoadSystemManifest(path string) (*SystemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read system manifest: %w", err)
	}
	return ParseSystemManifest(raw)
}

func ParseSystemManifest(raw []byte) (*SystemTable, error) {
	var f systemFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse system manifest: %w", err)
	}
	t := &SystemTable{
		entries: f.Systems,
		byName:  make(map[string]*SystemEntry, len(f.Systems)),
	}
	for i := range t.entries {
		e := &t.entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("system manifest entry %d: missing name", i)
		}
		if e.Script == "" {
			return nil, fmt.Errorf("system %q: missing script", e.Name)
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("system %q: declared twice", e.Name)
		}
		e.phase = phase.Update
		if e.Phase != "" {
			p, err := phase.Parse(e.Phase)
			if err != nil {
				return nil, fmt.Errorf("system %q: %w", e.Name, err)
			}
			if p != phase.None && !p.Dispatchable() {
				return nil, fmt.Errorf("system %q: phase %s does not dispatch systems", e.Name, p)
			}
			e.phase = p
		}
		t.byName[e.Name] = e
	}
	return t, nil
}

// Get returns the entry with the given name, or nil if none.
func (t *SystemTable) Get(name string) *SystemEntry {
	return t.byName[name]
}

// All returns the entries in manifest order.
func (t *SystemTable) All() []SystemEntry {
	return t.entries
}

// Count returns the total number of systems declared.
func (t *SystemTable) Count() int {
	return len(t.entries)
}
