// Package poolstore implements a Driver for a pooled, connection-cached
// object backend, modeled on the Ceph-style driver in original_source
// (libdlt/protocol/ceph/services.py): objects live in a named pool inside
// a cluster, and clusters are looked up from a per-configuration
// connection cache (created lazily, never evicted during a session).
//
// The backing store here is in-process memory rather than a real RADOS
// cluster, which makes poolstore a legitimate backend for same-process and
// test depots, and lets the transfer engine's own tests run end to end
// without a network dependency.
package poolstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/internal/connpool"
)

// WireSchema identifies poolstore's allocation wire format.
const WireSchema = "http://lors.local/schema/exnode/ext/1/pool#"

// Config is the opaque depot configuration a poolstore depot carries:
// which cluster (by name) and pool an allocation lives in.
type Config struct {
	Cluster string
	Pool    string
}

func (c Config) cacheKey() string {
	return c.Cluster + "/" + c.Pool
}

// cluster is the in-memory stand-in for a RADOS cluster connection: one
// mutex-guarded object map per pool.
type cluster struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// Driver implements driver.Driver against in-memory pools, caching one
// cluster handle per configuration identity.
type Driver struct {
	clusters *connpool.Pool[*cluster]
}

// New returns a poolstore driver with an empty connection cache.
func New() *Driver {
	return &Driver{clusters: connpool.New[*cluster]()}
}

func (d *Driver) getCluster(cfg Config) *cluster {
	c, _ := d.clusters.GetOrCreate(cfg.cacheKey(), func() (*cluster, error) {
		return &cluster{objects: make(map[string][]byte)}, nil
	})
	return c
}

func asConfig(raw any) (Config, error) {
	if cfg, ok := raw.(Config); ok {
		return cfg, nil
	}
	return Config{}, errkinds.AllocationError.New("poolstore: expected Config, got %T", raw)
}

// MakeAllocation stores data under a freshly generated object id in the
// pool named by depot's config, and returns the resulting allocation.
func (d *Driver) MakeAllocation(ctx context.Context, data []byte, offset int64, dep depot.Depot, duration int64) (allocation.Allocation, error) {
	cfg, err := asConfig(dep.Config)
	if err != nil {
		return allocation.Allocation{}, err
	}
	if ctx.Err() != nil {
		return allocation.Allocation{}, errkinds.AllocationError.Wrap(ctx.Err())
	}

	oid := uuid.NewString()
	c := d.getCluster(cfg)

	c.mu.Lock()
	c.objects[oid] = append([]byte(nil), data...)
	c.mu.Unlock()

	return allocation.Allocation{
		Kind:     "pool",
		Location: dep.AccessPoint,
		Offset:   offset,
		Size:     int64(len(data)),
		Schema:   WireSchema,
		Mapping: allocation.Mapping{
			Read:   capability(cfg, oid),
			Write:  capability(cfg, oid),
			Manage: capability(cfg, oid),
		},
	}.WithDriverState(oid), nil
}

// Write is not used by poolstore: MakeAllocation both reserves and
// transfers data in one call. Present only for contract symmetry.
func (d *Driver) Write(ctx context.Context, alloc allocation.Allocation, data []byte, config any) error {
	cfg, err := asConfig(config)
	if err != nil {
		return err
	}
	oid, err := oidOf(alloc)
	if err != nil {
		return err
	}
	c := d.getCluster(cfg)
	c.mu.Lock()
	c.objects[oid] = append([]byte(nil), data...)
	c.mu.Unlock()
	return nil
}

// Read returns exactly alloc.Size bytes from the object the allocation
// names, or an AllocationError if the object is missing or short.
func (d *Driver) Read(ctx context.Context, alloc allocation.Allocation, config any) ([]byte, error) {
	cfg, err := asConfig(config)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errkinds.AllocationError.Wrap(ctx.Err())
	}

	oid, err := oidOf(alloc)
	if err != nil {
		return nil, err
	}

	c := d.getCluster(cfg)
	c.mu.RLock()
	data, ok := c.objects[oid]
	c.mu.RUnlock()
	if !ok {
		return nil, errkinds.AllocationError.New("poolstore: no object %q", oid)
	}
	if int64(len(data)) < alloc.Size {
		return nil, errkinds.AllocationError.New("poolstore: short object %q: have %d want %d", oid, len(data), alloc.Size)
	}
	return data, nil
}

// Copy performs a server-to-server transfer: it reads from the source
// cluster/pool and writes into the destination cluster/pool under a new
// object id, without exposing the bytes to the engine beyond this call.
func (d *Driver) Copy(ctx context.Context, src allocation.Allocation, dstDepot depot.Depot, srcConfig, dstConfig any) (allocation.Allocation, error) {
	data, err := d.Read(ctx, src, srcConfig)
	if err != nil {
		return allocation.Allocation{}, err
	}
	return d.MakeAllocation(ctx, data, src.Offset, dstDepot, 0)
}

// BuildAllocation parses poolstore's JSON wire form into an Allocation.
func (d *Driver) BuildAllocation(raw map[string]any) (allocation.Allocation, error) {
	a := allocation.Allocation{Kind: "pool", Schema: WireSchema}

	loc, _ := raw["location"].(string)
	a.Location = loc

	if v, ok := raw["offset"].(float64); ok {
		a.Offset = int64(v)
	}
	if v, ok := raw["size"].(float64); ok {
		a.Size = int64(v)
	}

	if m, ok := raw["mapping"].(map[string]any); ok {
		a.Mapping.Read, _ = m["read"].(string)
		a.Mapping.Write, _ = m["write"].(string)
		a.Mapping.Manage, _ = m["manage"].(string)
	}

	if err := a.Validate(); err != nil {
		return allocation.Allocation{}, err
	}
	return a, nil
}

func capability(cfg Config, oid string) string {
	return fmt.Sprintf("pool://%s/%s/%s", cfg.Cluster, cfg.Pool, oid)
}

func oidOf(alloc allocation.Allocation) (string, error) {
	if oid, ok := alloc.DriverState().(string); ok && oid != "" {
		return oid, nil
	}
	// fall back to parsing the read capability "pool://cluster/pool/oid",
	// the shape BuildAllocation produces for allocations that arrived over
	// the wire rather than freshly minted by MakeAllocation.
	const prefix = "pool://"
	cap := alloc.Mapping.Read
	if len(cap) <= len(prefix) || cap[:len(prefix)] != prefix {
		return "", errkinds.MalformedAllocation.New("poolstore: cannot resolve object id from allocation")
	}
	parts := strings.SplitN(cap[len(prefix):], "/", 3)
	if len(parts) != 3 {
		return "", errkinds.MalformedAllocation.New("poolstore: malformed capability %q", cap)
	}
	return parts[2], nil
}
