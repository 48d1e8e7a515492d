package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

//go:embed default.yaml
var defaultYAML []byte

// Wildcard matches any endpoint label in a relation pair.
const Wildcard = "*"

// Descriptor describes one type label.
type Descriptor struct {
	Label       string `json:"label"`
	CacheFamily string `json:"cacheFamily,omitempty"`
	// Cached is set at load time when instances whose supertype has this
	// label may be served from the attribute cache.
	Cached bool `json:"cached"`
}

// Pair is one canonical (source, target) combination of a relation type.
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// RelationDef is the canonical orientation of a relation type.
type RelationDef struct {
	Type       string `json:"type"`
	SourceRole string `json:"sourceRole"`
	TargetRole string `json:"targetRole"`
	Pairs      []Pair `json:"pairs"`
}

// Endpoint is the type and supertype label of one side of a relation.
type Endpoint struct {
	Type      string
	Supertype string
}

func (e Endpoint) matches(label string) bool {
	return label == Wildcard || (label != "" && (label == e.Type || label == e.Supertype))
}

// Orients reports whether from→to follows one of the definition's pairs.
func (d RelationDef) Orients(from, to Endpoint) bool {
	for _, p := range d.Pairs {
		if from.matches(p.Source) && to.matches(p.Target) {
			return true
		}
	}
	return false
}

// Registry holds the schema descriptors used by the graph layer.
type Registry struct {
	multi     map[string]bool
	statDates map[string]bool
	types     map[string]Descriptor
	relations map[string]RelationDef
}

type document struct {
	MultipleAttributes   []string `yaml:"multiple_attributes"`
	StatisticsDateFields []string `yaml:"statistics_date_fields"`
	Types                []struct {
		Label       string `yaml:"label"`
		CacheFamily string `yaml:"cache_family"`
	} `yaml:"types"`
	Relations map[string]struct {
		SourceRole string     `yaml:"source_role"`
		TargetRole string     `yaml:"target_role"`
		Pairs      [][]string `yaml:"pairs"`
	} `yaml:"relations"`
}

// Load parses descriptors from YAML.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	reg := &Registry{
		multi:     map[string]bool{},
		statDates: map[string]bool{},
		types:     map[string]Descriptor{},
		relations: map[string]RelationDef{},
	}

	for _, a := range doc.MultipleAttributes {
		if !typeql.ValidLabel(a) {
			return nil, fmt.Errorf("schema: invalid attribute label %q", a)
		}
		reg.multi[a] = true
	}
	for _, a := range doc.StatisticsDateFields {
		if !typeql.ValidLabel(a) {
			return nil, fmt.Errorf("schema: invalid attribute label %q", a)
		}
		reg.statDates[a] = true
	}
	for _, t := range doc.Types {
		if !typeql.ValidLabel(t.Label) {
			return nil, fmt.Errorf("schema: invalid type label %q", t.Label)
		}
		if _, dup := reg.types[t.Label]; dup {
			return nil, fmt.Errorf("schema: type %q declared twice", t.Label)
		}
		reg.types[t.Label] = Descriptor{
			Label:       t.Label,
			CacheFamily: t.CacheFamily,
			Cached:      t.CacheFamily != "",
		}
	}
	for name, rel := range doc.Relations {
		if !typeql.ValidLabel(name) {
			return nil, fmt.Errorf("schema: invalid relation type %q", name)
		}
		if !typeql.ValidLabel(rel.SourceRole) || !typeql.ValidLabel(rel.TargetRole) {
			return nil, fmt.Errorf("schema: relation %q needs valid source_role and target_role", name)
		}
		def := RelationDef{Type: name, SourceRole: rel.SourceRole, TargetRole: rel.TargetRole}
		for _, p := range rel.Pairs {
			if len(p) != 2 || !validPairLabel(p[0]) || !validPairLabel(p[1]) {
				return nil, fmt.Errorf("schema: relation %q has invalid pair %v", name, p)
			}
			def.Pairs = append(def.Pairs, Pair{Source: p[0], Target: p[1]})
		}
		reg.relations[name] = def
	}
	return reg, nil
}

func validPairLabel(s string) bool {
	return s == Wildcard || typeql.ValidLabel(s)
}

// LoadFile parses descriptors from a YAML file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded descriptors.
func Default() *Registry {
	reg, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded schema is invalid: %v", err))
	}
	return reg
}

// IsMulti reports whether attribute type label always decodes to a list.
func (r *Registry) IsMulti(label string) bool { return r.multi[label] }

// IsStatisticDate reports whether label carries _day/_month/_year buckets.
func (r *Registry) IsStatisticDate(label string) bool { return r.statDates[label] }

// Descriptor returns the descriptor for a type label.
func (r *Registry) Descriptor(label string) (Descriptor, bool) {
	d, ok := r.types[label]
	return d, ok
}

// CacheFamily returns the cache family serving instances whose supertype is
// label, if that supertype is cached.
func (r *Registry) CacheFamily(supertype string) (string, bool) {
	d, ok := r.types[supertype]
	if !ok || !d.Cached {
		return "", false
	}
	return d.CacheFamily, true
}

// Relation returns the definition of a relation type.
func (r *Registry) Relation(relType string) (RelationDef, bool) {
	d, ok := r.relations[relType]
	return d, ok
}

// ShouldSwap reports whether a relation of relType bound as from→to is
// reversed relative to its canonical orientation. Unknown relation types and
// pairs that match neither way are left alone.
func (r *Registry) ShouldSwap(relType string, from, to Endpoint) bool {
	def, ok := r.relations[relType]
	if !ok {
		return false
	}
	return !def.Orients(from, to) && def.Orients(to, from)
}

// Types returns every descriptor ordered by label.
func (r *Registry) Types() []Descriptor {
	out := make([]Descriptor, 0, len(r.types))
	for _, d := range r.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Relations returns every relation definition ordered by type.
func (r *Registry) Relations() []RelationDef {
	out := make([]RelationDef, 0, len(r.relations))
	for _, d := range r.relations {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
