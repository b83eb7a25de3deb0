package poolstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/driver/poolstore"
)

func testDepot(ap string) depot.Depot {
	return depot.Depot{
		AccessPoint: ap,
		Kind:        "pool",
		Enabled:     true,
		Config:      poolstore.Config{Cluster: "test", Pool: "lors"},
	}
}

func TestMakeAllocationAndRead(t *testing.T) {
	drv := poolstore.New()
	d := testDepot("D1")
	data := []byte("hello world")

	alloc, err := drv.MakeAllocation(context.Background(), data, 0, d, 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), alloc.Size)
	require.Equal(t, "D1", alloc.Location)
	require.Equal(t, poolstore.WireSchema, alloc.Schema)

	got, err := drv.Read(context.Background(), alloc, d.Config)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestReadViaCapabilityFallback(t *testing.T) {
	drv := poolstore.New()
	d := testDepot("D1")

	fake := struct{}{}
	_ = fake
	alloc, err := drv.MakeAllocation(context.Background(), []byte("x"), 0, d, 0)
	require.NoError(t, err)

	// round-trip through BuildAllocation, which loses driverState, to
	// exercise the capability-string fallback path in Read.
	wire := map[string]any{
		"location": alloc.Location,
		"offset":   float64(alloc.Offset),
		"size":     float64(alloc.Size),
		"mapping": map[string]any{
			"read":   alloc.Mapping.Read,
			"write":  alloc.Mapping.Write,
			"manage": alloc.Mapping.Manage,
		},
	}
	rebuilt, err := drv.BuildAllocation(wire)
	require.NoError(t, err)
	require.Nil(t, rebuilt.DriverState())

	data, err := drv.Read(context.Background(), rebuilt, d.Config)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), data)
}

func TestCopyBetweenDepots(t *testing.T) {
	drv := poolstore.New()
	src := testDepot("D1")
	dst := depot.Depot{AccessPoint: "D2", Kind: "pool", Enabled: true,
		Config: poolstore.Config{Cluster: "test", Pool: "lors2"}}

	alloc, err := drv.MakeAllocation(context.Background(), []byte("payload"), 100, src, 0)
	require.NoError(t, err)

	dstAlloc, err := drv.Copy(context.Background(), alloc, dst, src.Config, dst.Config)
	require.NoError(t, err)
	require.Equal(t, "D2", dstAlloc.Location)
	require.Equal(t, int64(100), dstAlloc.Offset)

	data, err := drv.Read(context.Background(), dstAlloc, dst.Config)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}
