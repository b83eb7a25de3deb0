package session

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/minio/sha256-simd"
	"go.uber.org/zap"

	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/internal/jobqueue"
	"github.com/lorsio/lors/internal/workq"
	"github.com/lorsio/lors/schedule"
)

// DownloadOptions configures one Download call beyond the Session's
// defaults.
type DownloadOptions struct {
	// Schedule overrides the default retry-bounded download schedule.
	Schedule schedule.DownloadSchedule
	// Progress, if set, is called after each chunk transfer succeeds.
	Progress ProgressFunc
}

// Download resolves ref from the metadata registry and writes its content
// to localPath, splitting the file-wide range into per-allocation writes
// as replicas are consulted, per the download engine's coverage algorithm.
func (s *Session) Download(ctx context.Context, ref, localPath string, opts DownloadOptions) (result DownloadResult, err error) {
	defer mon.Task()(&ctx)(&err)

	leave, err := s.enter()
	if err != nil {
		return DownloadResult{}, err
	}
	defer leave()

	start := time.Now()

	ex, err := s.Meta.Resolve(ctx, ref)
	if err != nil {
		return DownloadResult{}, errkinds.RegistryError.Wrap(err)
	}

	dst, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return DownloadResult{}, err
	}
	defer dst.Close()

	if s.Viz != nil {
		s.Viz.Register(s.ID, ex.Name, ex.Size, len(s.Depots.Enabled()))
		defer s.Viz.Clear(s.ID)
	}

	if ex.Size == 0 {
		return DownloadResult{DurationS: time.Since(start).Seconds(), Bytes: 0, Exnode: ex}, nil
	}

	downloadSchedule := opts.Schedule
	if downloadSchedule == nil {
		downloadSchedule = &schedule.BaseDownloadSchedule{}
	}
	downloadSchedule.SetSource(ex.Extents)

	q := jobqueue.New()
	q.Put(jobqueue.Job{Offset: 0, Size: ex.Size})

	var pending int64 = 1
	var pendingMu sync.Mutex
	adjust := func(delta int64) {
		pendingMu.Lock()
		pending += delta
		done := pending <= 0
		pendingMu.Unlock()
		if done {
			q.Close()
		}
	}

	attempts := newAttemptTracker()
	var bytesMu sync.Mutex
	var bytesWritten int64
	var schedMu sync.Mutex

	limiter := workq.NewLimiter(s.Cfg.Threads)
	for rank := 0; rank < s.Cfg.Threads; rank++ {
		rank := rank
		limiter.Go(ctx, func() {
			s.downloadWorker(ctx, rank, dst, q, downloadSchedule, &schedMu, attempts, adjust, opts.Progress, &bytesMu, &bytesWritten)
		})
	}
	limiter.Wait()

	return DownloadResult{
		DurationS: time.Since(start).Seconds(),
		Bytes:     bytesWritten,
		Exnode:    ex,
	}, nil
}

func (s *Session) downloadWorker(
	ctx context.Context,
	rank int,
	dst *os.File,
	q *jobqueue.Queue,
	sched schedule.DownloadSchedule,
	schedMu *sync.Mutex,
	attempts *attemptTracker,
	adjust func(int64),
	progress ProgressFunc,
	bytesMu *sync.Mutex,
	bytesWritten *int64,
) {
	log := s.Log.With(zap.Int("worker", rank))

	for {
		job, ok := q.Get(ctx)
		if !ok {
			return
		}
		end := job.Size // Job.Size is repurposed here as the range's absolute end.

		schedMu.Lock()
		alloc, err := sched.Get(schedule.Context{Offset: job.Offset})
		schedMu.Unlock()
		if err != nil {
			log.Error("no replica available", zap.Int64("offset", job.Offset), zap.Error(err))
			adjust(-1)
			continue
		}

		allocEnd := alloc.Offset + alloc.Size
		if allocEnd < end {
			// a replica only partially covers the remaining range; enqueue
			// the remainder before reading so other workers can proceed.
			adjust(1)
			q.Put(jobqueue.Job{Offset: allocEnd, Size: end})
		}

		d, err := s.depotFor(alloc.Location)
		if err != nil {
			log.Error("no depot known for allocation", zap.String("location", alloc.Location), zap.Error(err))
			if attempts.bump(job.Offset) {
				q.Put(jobqueue.Job{Offset: job.Offset, Size: minInt64(allocEnd, end)})
			} else {
				adjust(-1)
			}
			continue
		}

		drv, err := s.Registry.BySchema(alloc.Schema)
		if err != nil {
			log.Error("no driver for allocation schema", zap.String("schema", alloc.Schema), zap.Error(err))
			adjust(-1)
			continue
		}

		cctx, cancel := s.withTimeout(ctx)
		data, err := drv.Read(cctx, alloc, d.Config)
		cancel()

		if err == nil && int64(len(data)) < alloc.Size {
			err = errkinds.AllocationError.New("short read: have %d want %d", len(data), alloc.Size)
		}
		if err == nil && s.Cfg.VerifyChecksums && len(alloc.Checksum) > 0 {
			sum := sha256.Sum256(data)
			if !equalBytes(sum[:], alloc.Checksum) {
				err = errkinds.AllocationError.New("checksum mismatch at offset %d", alloc.Offset)
			}
		}
		if err != nil {
			if attempts.bump(job.Offset) {
				log.Debug("read failed, re-enqueueing", zap.Int64("offset", job.Offset), zap.Error(err))
				q.Put(jobqueue.Job{Offset: job.Offset, Size: minInt64(allocEnd, end)})
			} else {
				log.Warn("read failed, retry limit reached", zap.Int64("offset", job.Offset), zap.Error(err))
				adjust(-1)
			}
			continue
		}

		if _, err := dst.WriteAt(data, alloc.Offset); err != nil {
			log.Error("write failed", zap.Int64("offset", alloc.Offset), zap.Error(err))
			adjust(-1)
			continue
		}

		bytesMu.Lock()
		*bytesWritten += int64(len(data))
		bytesMu.Unlock()

		s.records.append(TransferRecord{Direction: DirectionDownload, Allocation: alloc, Offset: alloc.Offset, Bytes: int64(len(data))})
		if s.Viz != nil {
			s.Viz.Progress(s.ID, d.AccessPoint, int64(len(data)), alloc.Offset)
		}
		if progress != nil {
			progress(DirectionDownload, d.AccessPoint, alloc.Offset, int64(len(data)))
		}

		adjust(-1)
	}
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
