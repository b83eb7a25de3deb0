package ibp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/driver/ibp"
)

func testDepot(ap string) depot.Depot {
	return depot.Depot{
		AccessPoint: ap,
		Kind:        "ibp",
		Enabled:     true,
		Config:      ibp.Config{Host: "depot.local", Port: 6714},
	}
}

func TestParseCapabilityRoundTrips(t *testing.T) {
	raw := "ibp//depot.local:6714/abc-key/abc-wrm/RD"
	cap, err := ibp.ParseCapability(raw)
	require.NoError(t, err)
	require.Equal(t, "depot.local", cap.Host)
	require.Equal(t, "6714", cap.Port)
	require.Equal(t, "abc-key", cap.Key)
	require.Equal(t, "abc-wrm", cap.WRMKey)
	require.Equal(t, "RD", cap.Code)
	require.Equal(t, raw, cap.String())
}

func TestParseCapabilityRejectsMalformedInput(t *testing.T) {
	_, err := ibp.ParseCapability("not-a-capability")
	require.Error(t, err)
}

func TestMakeAllocationAndRead(t *testing.T) {
	drv := ibp.New()
	d := testDepot("D1")
	data := []byte("hello ibp")

	alloc, err := drv.MakeAllocation(context.Background(), data, 0, d, 3600)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), alloc.Size)
	require.Equal(t, "D1", alloc.Location)
	require.Equal(t, ibp.WireSchema, alloc.Schema)

	_, err = ibp.ParseCapability(alloc.Mapping.Read)
	require.NoError(t, err)

	got, err := drv.Read(context.Background(), alloc, d.Config)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestBuildAllocationRoundTrip(t *testing.T) {
	drv := ibp.New()
	d := testDepot("D1")

	alloc, err := drv.MakeAllocation(context.Background(), []byte("payload"), 4096, d, 60)
	require.NoError(t, err)

	wire := map[string]any{
		"location": alloc.Location,
		"offset":   float64(alloc.Offset),
		"size":     float64(alloc.Size),
		"lifetime": map[string]any{
			"start": alloc.Lifetime.Start.Format("2006-01-02 15:04:05"),
			"end":   alloc.Lifetime.End.Format("2006-01-02 15:04:05"),
		},
		"mapping": map[string]any{
			"read":   alloc.Mapping.Read,
			"write":  alloc.Mapping.Write,
			"manage": alloc.Mapping.Manage,
		},
	}

	rebuilt, err := drv.BuildAllocation(wire)
	require.NoError(t, err)
	require.Equal(t, alloc.Offset, rebuilt.Offset)
	require.Equal(t, alloc.Size, rebuilt.Size)
	require.Equal(t, alloc.Mapping, rebuilt.Mapping)

	data, err := drv.Read(context.Background(), rebuilt, d.Config)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestCopyBetweenDepots(t *testing.T) {
	drv := ibp.New()
	src := testDepot("D1")
	dst := depot.Depot{AccessPoint: "D2", Kind: "ibp", Enabled: true, Config: ibp.Config{Host: "depot2.local", Port: 6714}}

	alloc, err := drv.MakeAllocation(context.Background(), []byte("transfer-me"), 200, src, 60)
	require.NoError(t, err)

	dstAlloc, err := drv.Copy(context.Background(), alloc, dst, src.Config, dst.Config)
	require.NoError(t, err)
	require.Equal(t, "D2", dstAlloc.Location)
	require.Equal(t, int64(200), dstAlloc.Offset)

	data, err := drv.Read(context.Background(), dstAlloc, dst.Config)
	require.NoError(t, err)
	require.Equal(t, []byte("transfer-me"), data)
}
