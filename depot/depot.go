// Package depot describes addressable storage backends.
package depot

// Depot is an addressable backend: a key (access point), a kind tag
// resolved against the protocol registry, an enabled flag, and an opaque
// configuration blob consumed by the matching driver.
//
// Depot is immutable for the lifetime of a session; the depot table a
// Session holds is read-only during a transfer.
type Depot struct {
	AccessPoint string
	Kind        string
	Enabled     bool
	Config      any
}

// Table is a depot set keyed by access point, the shape the upload
// schedule installs via UploadSchedule.SetSource.
type Table map[string]Depot

// Enabled returns the subset of t whose Enabled flag is set.
func (t Table) Enabled() Table {
	out := make(Table, len(t))
	for k, d := range t {
		if d.Enabled {
			out[k] = d
		}
	}
	return out
}
