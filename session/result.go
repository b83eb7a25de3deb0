package session

import (
	"sync"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/exnode"
)

// UploadResult summarizes a completed upload.
type UploadResult struct {
	DurationS float64
	Bytes     int64
	Exnode    *exnode.Exnode
}

// DownloadResult summarizes a completed download.
type DownloadResult struct {
	DurationS float64
	Bytes     int64
	Exnode    *exnode.Exnode
}

// CopyResult summarizes a completed copy.
type CopyResult struct {
	DurationS float64
	Exnode    *exnode.Exnode
}

// Direction distinguishes an upload transfer record from a download one.
type Direction string

const (
	DirectionUpload   Direction = "U"
	DirectionDownload Direction = "D"
)

// TransferRecord is an in-memory audit entry appended whenever a chunk
// transfer succeeds. Not persisted; retrievable via Session.Records.
type TransferRecord struct {
	Direction Direction
	Allocation allocation.Allocation
	Offset    int64
	Bytes     int64
}

// recordLog is the append-only, mutex-protected transfer record log a
// Session maintains across its lifetime.
type recordLog struct {
	mu      sync.Mutex
	records []TransferRecord
}

func (l *recordLog) append(rec TransferRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

func (l *recordLog) snapshot() []TransferRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TransferRecord, len(l.records))
	copy(out, l.records)
	return out
}
