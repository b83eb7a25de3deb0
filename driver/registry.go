package driver

import (
	"encoding/json"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/errkinds"
)

// Registry maps a depot-kind tag (used when creating a fresh allocation,
// where the caller already picked a depot and knows its kind) and a wire
// schema identifier (used when reading/copying an allocation received from
// elsewhere) to the Driver that handles it. Both maps are populated once at
// construction and never mutated afterward — Registry is read-only for the
// lifetime of a session, matching the teacher's pattern of building
// read-only lookup tables once at process start and sharing them freely
// across goroutines.
type Registry struct {
	byKind   map[string]Driver
	bySchema map[string]Driver
}

// Binding associates a Driver with the depot-kind tag and wire schema it
// serves.
type Binding struct {
	Kind    string
	Schema  string
	Driver  Driver
}

// NewRegistry builds a read-only registry from a set of bindings.
func NewRegistry(bindings ...Binding) *Registry {
	r := &Registry{
		byKind:   make(map[string]Driver, len(bindings)),
		bySchema: make(map[string]Driver, len(bindings)),
	}
	for _, b := range bindings {
		if b.Kind != "" {
			r.byKind[b.Kind] = b.Driver
		}
		if b.Schema != "" {
			r.bySchema[b.Schema] = b.Driver
		}
	}
	return r
}

// ByKind returns the driver registered for a depot kind tag.
func (r *Registry) ByKind(kind string) (Driver, error) {
	d, ok := r.byKind[kind]
	if !ok {
		return nil, errkinds.UnknownBackend.New("no driver registered for depot kind %q", kind)
	}
	return d, nil
}

// BySchema returns the driver registered for a wire schema identifier.
func (r *Registry) BySchema(schema string) (Driver, error) {
	d, ok := r.bySchema[schema]
	if !ok {
		return nil, errkinds.UnknownBackend.New("no driver registered for schema %q", schema)
	}
	return d, nil
}

// BuildAllocation normalizes raw input — a JSON string, []byte, or an
// already-decoded map — into a typed Allocation. It extracts the schema
// identifier ("schema" or "$schema") and delegates to the matching
// driver's BuildAllocation.
func (r *Registry) BuildAllocation(raw any) (allocation.Allocation, error) {
	obj, err := toObject(raw)
	if err != nil {
		return allocation.Allocation{}, errkinds.MalformedAllocation.Wrap(err)
	}

	schema, _ := obj["schema"].(string)
	if schema == "" {
		schema, _ = obj["$schema"].(string)
	}
	if schema == "" {
		return allocation.Allocation{}, errkinds.MalformedAllocation.New("allocation missing schema/$schema field")
	}

	drv, err := r.BySchema(schema)
	if err != nil {
		return allocation.Allocation{}, err
	}

	alloc, err := drv.BuildAllocation(obj)
	if err != nil {
		return allocation.Allocation{}, errkinds.MalformedAllocation.Wrap(err)
	}
	alloc.Schema = schema
	return alloc, nil
}

func toObject(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			return nil, err
		}
		return obj, nil
	case []byte:
		var obj map[string]any
		if err := json.Unmarshal(v, &obj); err != nil {
			return nil, err
		}
		return obj, nil
	default:
		// round-trip through JSON for any other already-typed value
		// (e.g. a struct literal passed directly in tests).
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var obj map[string]any
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil, err
		}
		return obj, nil
	}
}
