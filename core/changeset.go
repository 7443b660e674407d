package core

import (
	"bytes"
	"reflect"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// sorts map keys, so the encoding of a value is canonical
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// A Snapshot holds the field values of a domain object. Values must be JSON-compatible.
type Snapshot map[string]interface{}

// DecodeSnapshot parses a JSON object. An empty input yields an empty snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s = Snapshot{}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s Snapshot) Encode() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Clone returns a shallow copy.
func (s Snapshot) Clone() Snapshot {
	var c = make(Snapshot, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

type Change struct {
	Field string
	Type  FieldType // empty if the field is not declared in the schema
	Old   interface{}
	New   interface{}
}

// A ChangeSet is ordered like the schema, followed by undeclared fields in alphabetical order.
type ChangeSet []Change

// Changes compares two snapshots of the same domain object and returns every field which is not excluded and whose resolved values differ.
//
// Absent fields resolve to the zero value of their declared type, or to nil if they are not declared.
// Values are compared structurally.
func Changes(schema Schema, prior, current Snapshot, exclude map[string]struct{}) ChangeSet {

	var changes = ChangeSet{}

	for _, field := range fieldOrder(schema, prior, current) {

		if _, ok := exclude[field.Name]; ok {
			continue
		}

		var oldValue = resolve(field, prior)
		var newValue = resolve(field, current)

		if !Equal(oldValue, newValue) {
			changes = append(changes, Change{
				Field: field.Name,
				Type:  field.Type,
				Old:   oldValue,
				New:   newValue,
			})
		}
	}

	return changes
}

// fieldOrder returns the declared fields, then the undeclared fields of both snapshots sorted by name.
func fieldOrder(schema Schema, prior, current Snapshot) []Field {

	var fields = make([]Field, 0, len(schema))
	var declared = make(map[string]struct{}, len(schema))
	for _, f := range schema {
		fields = append(fields, f)
		declared[f.Name] = struct{}{}
	}

	var extra = []string{}
	for _, snapshot := range []Snapshot{prior, current} {
		for name := range snapshot {
			if _, ok := declared[name]; !ok {
				declared[name] = struct{}{}
				extra = append(extra, name)
			}
		}
	}
	sort.Strings(extra)

	for _, name := range extra {
		fields = append(fields, Field{Name: name})
	}

	return fields
}

func resolve(field Field, s Snapshot) interface{} {
	value, ok := s[field.Name]
	if (!ok || value == nil) && field.Type != "" {
		return field.Type.Zero()
	}
	return value
}

// Equal compares two values by their canonical JSON encoding.
// If a value can't be encoded, it falls back to reflect.DeepEqual.
func Equal(a, b interface{}) bool {
	encA, errA := json.Marshal(a)
	encB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(encA, encB)
}

// Apply returns a copy of old with the new values of all changes.
func (cs ChangeSet) Apply(old Snapshot) Snapshot {
	var result = old.Clone()
	for _, c := range cs {
		result[c.Field] = c.New
	}
	return result
}

func (cs ChangeSet) Fields() []string {
	var fields = make([]string, len(cs))
	for i, c := range cs {
		fields[i] = c.Field
	}
	return fields
}

func (cs ChangeSet) Has(field string) bool {
	for _, c := range cs {
		if c.Field == field {
			return true
		}
	}
	return false
}
