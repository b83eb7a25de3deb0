// Package ibp implements a Driver modeled on the legacy IBP allocation
// backend in original_source (libdlt/protocol/ibp/allocation.py): capability
// tokens are slash-delimited strings of the form
// "<scheme>//<host>:<port>/<key>/<wrm-key>/<code>", and lifetimes are
// wire-encoded as "%Y-%m-%d %H:%M:%S" timestamps.
//
// Like poolstore, the backing store is in-process memory rather than a
// real IBP depot daemon, so the reference driver is runnable in tests
// without a network dependency, while still exercising the legacy
// capability-string format BuildAllocation must accept and re-emit
// verbatim per the wire interface.
package ibp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/internal/connpool"
)

// WireSchema identifies the IBP allocation wire format.
const WireSchema = "http://lors.local/schema/exnode/ext/1/ibp#"

// Config is an IBP depot's opaque configuration: the host:port of the
// depot daemon an allocation's capabilities point at.
type Config struct {
	Host string
	Port int
}

func (c Config) addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Capability is a parsed IBP capability string.
type Capability struct {
	raw    string
	Host   string
	Port   string
	Key    string
	WRMKey string
	Code   string
}

// ParseCapability parses the slash-delimited legacy capability form
// "<scheme>//<host>:<port>/<key>/<wrm-key>/<code>".
func ParseCapability(s string) (Capability, error) {
	// "scheme//host:port/key/wrmkey/code" splits on "/" into
	// [scheme, "", host:port, key, wrmkey, code].
	parts := strings.Split(s, "/")
	if len(parts) < 6 {
		return Capability{}, errkinds.MalformedAllocation.New("malformed capability string %q", s)
	}
	hostport := strings.SplitN(parts[2], ":", 2)
	if len(hostport) != 2 {
		return Capability{}, errkinds.MalformedAllocation.New("malformed capability address in %q", s)
	}
	return Capability{
		raw:    s,
		Host:   hostport[0],
		Port:   hostport[1],
		Key:    parts[3],
		WRMKey: parts[4],
		Code:   parts[5],
	}, nil
}

// String returns the capability's original wire form, verbatim.
func (c Capability) String() string { return c.raw }

func makeCapability(scheme, addr, key, wrmKey, code string) string {
	return fmt.Sprintf("%s//%s/%s/%s/%s", scheme, addr, key, wrmKey, code)
}

type depotStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// Driver implements driver.Driver against in-memory IBP-style depots,
// caching one store per depot address.
type Driver struct {
	depots *connpool.Pool[*depotStore]
}

// New returns an IBP driver with an empty connection cache.
func New() *Driver {
	return &Driver{depots: connpool.New[*depotStore]()}
}

func (d *Driver) getStore(addr string) *depotStore {
	s, _ := d.depots.GetOrCreate(addr, func() (*depotStore, error) {
		return &depotStore{objects: make(map[string][]byte)}, nil
	})
	return s
}

func asConfig(raw any) (Config, error) {
	if cfg, ok := raw.(Config); ok {
		return cfg, nil
	}
	return Config{}, errkinds.AllocationError.New("ibp: expected Config, got %T", raw)
}

// MakeAllocation reserves a key on the depot's in-memory store and writes
// data to it, returning an allocation whose capabilities follow the legacy
// slash-delimited form.
func (d *Driver) MakeAllocation(ctx context.Context, data []byte, offset int64, dep depot.Depot, duration int64) (allocation.Allocation, error) {
	cfg, err := asConfig(dep.Config)
	if err != nil {
		return allocation.Allocation{}, err
	}
	if ctx.Err() != nil {
		return allocation.Allocation{}, errkinds.AllocationError.Wrap(ctx.Err())
	}

	key := uuid.NewString()
	wrmKey := uuid.NewString()
	store := d.getStore(cfg.addr())

	store.mu.Lock()
	store.objects[key] = append([]byte(nil), data...)
	store.mu.Unlock()

	now := time.Now().UTC()
	end := now
	if duration > 0 {
		end = now.Add(time.Duration(duration) * time.Second)
	}

	return allocation.Allocation{
		Kind:     "ibp",
		Location: dep.AccessPoint,
		Offset:   offset,
		Size:     int64(len(data)),
		Schema:   WireSchema,
		Lifetime: allocation.Lifetime{Start: now, End: end},
		Mapping: allocation.Mapping{
			Read:   makeCapability("ibp", cfg.addr(), key, wrmKey, "RD"),
			Write:  makeCapability("ibp", cfg.addr(), key, wrmKey, "WR"),
			Manage: makeCapability("ibp", cfg.addr(), key, wrmKey, "MG"),
		},
	}.WithDriverState(key), nil
}

// Write stores data under the allocation's existing key. Present for
// contract symmetry; MakeAllocation already reserves and writes.
func (d *Driver) Write(ctx context.Context, alloc allocation.Allocation, data []byte, config any) error {
	cfg, err := asConfig(config)
	if err != nil {
		return err
	}
	capb, err := ParseCapability(alloc.Mapping.Write)
	if err != nil {
		return err
	}
	store := d.getStore(cfg.addr())
	store.mu.Lock()
	store.objects[capb.Key] = append([]byte(nil), data...)
	store.mu.Unlock()
	return nil
}

// Read returns exactly alloc.Size bytes from the object the allocation's
// read capability names.
func (d *Driver) Read(ctx context.Context, alloc allocation.Allocation, config any) ([]byte, error) {
	cfg, err := asConfig(config)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errkinds.AllocationError.Wrap(ctx.Err())
	}

	capb, err := ParseCapability(alloc.Mapping.Read)
	if err != nil {
		return nil, err
	}

	store := d.getStore(cfg.addr())
	store.mu.RLock()
	data, ok := store.objects[capb.Key]
	store.mu.RUnlock()
	if !ok {
		return nil, errkinds.AllocationError.New("ibp: no object for key %q", capb.Key)
	}
	if int64(len(data)) < alloc.Size {
		return nil, errkinds.AllocationError.New("ibp: short object %q: have %d want %d", capb.Key, len(data), alloc.Size)
	}
	return data, nil
}

// Copy reads from the source depot and writes to a fresh allocation on the
// destination depot.
func (d *Driver) Copy(ctx context.Context, src allocation.Allocation, dstDepot depot.Depot, srcConfig, dstConfig any) (allocation.Allocation, error) {
	data, err := d.Read(ctx, src, srcConfig)
	if err != nil {
		return allocation.Allocation{}, err
	}
	return d.MakeAllocation(ctx, data, src.Offset, dstDepot, 0)
}

// BuildAllocation parses IBP's JSON wire form, including the slash
// delimited legacy capability strings, which are kept verbatim.
func (d *Driver) BuildAllocation(raw map[string]any) (allocation.Allocation, error) {
	a := allocation.Allocation{Kind: "ibp", Schema: WireSchema}

	loc, _ := raw["location"].(string)
	a.Location = loc

	if v, ok := raw["offset"].(float64); ok {
		a.Offset = int64(v)
	}
	if v, ok := raw["size"].(float64); ok {
		a.Size = int64(v)
	}

	if lt, ok := raw["lifetime"].(map[string]any); ok {
		if s, ok := lt["start"].(string); ok {
			if t, err := time.Parse(allocation.TimeLayout, s); err == nil {
				a.Lifetime.Start = t
			}
		}
		if s, ok := lt["end"].(string); ok {
			if t, err := time.Parse(allocation.TimeLayout, s); err == nil {
				a.Lifetime.End = t
			}
		}
	}

	m, ok := raw["mapping"].(map[string]any)
	if !ok {
		return allocation.Allocation{}, errkinds.MalformedAllocation.New("ibp: allocation missing mapping")
	}
	a.Mapping.Read, _ = m["read"].(string)
	a.Mapping.Write, _ = m["write"].(string)
	a.Mapping.Manage, _ = m["manage"].(string)

	for _, capStr := range []string{a.Mapping.Read, a.Mapping.Write, a.Mapping.Manage} {
		if capStr == "" {
			continue
		}
		if _, err := ParseCapability(capStr); err != nil {
			return allocation.Allocation{}, err
		}
	}

	if err := a.Validate(); err != nil {
		return allocation.Allocation{}, err
	}
	return a, nil
}
