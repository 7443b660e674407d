package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wansing/moderation/util"
)

type FieldType string

const (
	Text     FieldType = "text"
	Markdown FieldType = "markdown"
	Number   FieldType = "number"
	Bool     FieldType = "bool"
	List     FieldType = "list"
)

func (t FieldType) Valid() bool {
	switch t {
	case Text, Markdown, Number, Bool, List:
		return true
	}
	return false
}

// Zero returns the value which an absent field of this type resolves to.
func (t FieldType) Zero() interface{} {
	switch t {
	case Number:
		return float64(0)
	case Bool:
		return false
	case List:
		return []interface{}{}
	default:
		return ""
	}
}

type Field struct {
	Name string
	Type FieldType
}

// Schema describes the moderated fields of a domain type in declaration order.
type Schema []Field

// ParseSchema parses a comma-separated list like "title:text, body:markdown".
// The type defaults to text.
func ParseSchema(s string) (Schema, error) {
	var schema = Schema{}
	var seen = make(map[string]struct{})
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		var field = Field{Name: item, Type: Text}
		if colon := strings.Index(item, ":"); colon != -1 {
			field.Name = strings.TrimSpace(item[:colon])
			field.Type = FieldType(strings.TrimSpace(item[colon+1:]))
		}
		if field.Name == "" {
			return nil, fmt.Errorf("empty field name in %q", item)
		}
		if !field.Type.Valid() {
			return nil, fmt.Errorf("field %s: unknown type %q", field.Name, field.Type)
		}
		if _, ok := seen[field.Name]; ok {
			return nil, fmt.Errorf("duplicate field %s", field.Name)
		}
		seen[field.Name] = struct{}{}
		schema = append(schema, field)
	}
	return schema, nil
}

// Get returns the declared field with the given name.
func (s Schema) Get(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// A Policy tells how objects of a domain type are moderated.
type Policy struct {
	Type                 string
	Schema               Schema
	Exclude              map[string]struct{} // fields which are ignored when computing changes
	VisibleUntilRejected bool                // objects are visible while pending and hidden only on reject
	AutoApproveForStaff  bool
}

func (p *Policy) Excludes(field string) bool {
	_, ok := p.Exclude[field]
	return ok
}

// PolicyRegistry maps domain types to their policies. It is built once at start-up and is read-only afterwards.
type PolicyRegistry struct {
	policies map[string]*Policy
}

func NewPolicyRegistry(policies ...*Policy) (*PolicyRegistry, error) {
	var reg = &PolicyRegistry{
		policies: make(map[string]*Policy),
	}
	for _, p := range policies {
		if err := reg.add(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (reg *PolicyRegistry) add(p *Policy) error {
	if p.Type == "" {
		return fmt.Errorf("policy without type")
	}
	if _, ok := reg.policies[p.Type]; ok {
		return fmt.Errorf("duplicate policy for type %s", p.Type)
	}
	if p.Exclude == nil {
		p.Exclude = make(map[string]struct{})
	}
	reg.policies[p.Type] = p
	return nil
}

// All returns the registered type names in alphabetical order.
func (reg *PolicyRegistry) All() []string {
	if reg == nil {
		return nil
	}
	var all = make([]string, 0, len(reg.policies))
	for t := range reg.policies {
		all = append(all, t)
	}
	sort.Strings(all)
	return all
}

// Lookup returns the policy of a type. If the type is not registered, it returns a *NotRegisteredError.
func (reg *PolicyRegistry) Lookup(objectType string) (*Policy, error) {
	if reg != nil {
		if p, ok := reg.policies[objectType]; ok {
			return p, nil
		}
	}
	return nil, &NotRegisteredError{Type: objectType}
}

// LoadPolicies reads one policy per ini section:
//
//     [article]
//     fields = title:text, body:markdown, tags:list
//     exclude = updated_at
//     visible_until_rejected = true
//     auto_approve_for_staff = false
func LoadPolicies(filename string) (*PolicyRegistry, error) {

	sections, err := util.Ini(filename)
	if err != nil {
		return nil, err
	}

	var policies = make([]*Policy, 0, len(sections))

	for _, section := range sections {

		schema, err := ParseSchema(section.Keys["fields"])
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", section.Name, err)
		}

		var policy = &Policy{
			Type:    section.Name,
			Schema:  schema,
			Exclude: make(map[string]struct{}),
		}

		for _, field := range strings.Split(section.Keys["exclude"], ",") {
			if field = strings.TrimSpace(field); field != "" {
				policy.Exclude[field] = struct{}{}
			}
		}

		if policy.VisibleUntilRejected, err = parseBool(section.Keys["visible_until_rejected"]); err != nil {
			return nil, fmt.Errorf("policy %s: visible_until_rejected: %w", section.Name, err)
		}

		if policy.AutoApproveForStaff, err = parseBool(section.Keys["auto_approve_for_staff"]); err != nil {
			return nil, fmt.Errorf("policy %s: auto_approve_for_staff: %w", section.Name, err)
		}

		policies = append(policies, policy)
	}

	return NewPolicyRegistry(policies...)
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
