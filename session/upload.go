package session

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/minio/sha256-simd"
	"go.uber.org/zap"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/exnode"
	"github.com/lorsio/lors/internal/jobqueue"
	"github.com/lorsio/lors/internal/workq"
	"github.com/lorsio/lors/schedule"
)

// UploadOptions configures one Upload call beyond the Session's defaults.
type UploadOptions struct {
	// Parent is the optional parent directory exnode ID.
	Parent string
	// Schedule overrides the default round-robin upload schedule.
	Schedule schedule.UploadSchedule
	// Progress, if set, is called after each chunk transfer succeeds.
	Progress ProgressFunc
}

// Upload fragments the file at localPath into Cfg.BlockSize chunks,
// replicates each chunk Cfg.Copies times across the session's enabled
// depots, and assembles the resulting allocations into a new exnode.
func (s *Session) Upload(ctx context.Context, localPath string, opts UploadOptions) (result UploadResult, err error) {
	defer mon.Task()(&ctx)(&err)

	leave, err := s.enter()
	if err != nil {
		return UploadResult{}, err
	}
	defer leave()

	start := time.Now()

	f, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return UploadResult{}, err
	}
	size := info.Size()

	enabled := s.Depots.Enabled()
	if len(enabled) < s.Cfg.Copies {
		return UploadResult{}, errkinds.InsufficientDepots.New(
			"need %d enabled depots for %d copies per chunk, have %d", s.Cfg.Copies, s.Cfg.Copies, len(enabled))
	}

	now := nowMicros()
	ex := &exnode.Exnode{
		Name:    filepath.Base(localPath),
		Size:    size,
		Parent:  opts.Parent,
		Mode:    exnode.ModeFile,
		Created: now,
		Updated: now,
	}

	uploadSchedule := opts.Schedule
	if uploadSchedule == nil {
		uploadSchedule = &schedule.BaseUploadSchedule{}
	}
	uploadSchedule.SetSource(s.Depots)

	if s.Viz != nil {
		s.Viz.Register(s.ID, ex.Name, size, len(enabled))
		defer s.Viz.Clear(s.ID)
	}

	q := jobqueue.New()
	blockSize := int64(s.Cfg.BlockSize)
	if blockSize <= 0 {
		blockSize = 1
	}
	var total int64
	for offset := int64(0); offset < size; offset += blockSize {
		chunk := minInt64(blockSize, size-offset)
		for c := 0; c < s.Cfg.Copies; c++ {
			q.Put(jobqueue.Job{Offset: offset, Size: chunk})
			total++
		}
	}
	if total == 0 {
		// zero-byte file: still produce a valid exnode with no extents.
		if err := s.assembler.Assemble(ctx, ex, nil); err != nil {
			return UploadResult{}, err
		}
		return UploadResult{DurationS: time.Since(start).Seconds(), Bytes: 0, Exnode: ex}, nil
	}

	var pending int64 = total
	var pendingMu sync.Mutex
	closeIfDone := func(delta int64) {
		pendingMu.Lock()
		pending += delta
		done := pending <= 0
		pendingMu.Unlock()
		if done {
			q.Close()
		}
	}

	attempts := newAttemptTracker()
	var allocMu sync.Mutex
	var allocs []allocation.Allocation
	var schedMu sync.Mutex

	limiter := workq.NewLimiter(s.Cfg.Threads)
	for rank := 0; rank < s.Cfg.Threads; rank++ {
		rank := rank
		limiter.Go(ctx, func() {
			s.uploadWorker(ctx, rank, f, q, uploadSchedule, &schedMu, attempts, closeIfDone, opts.Progress, &allocMu, &allocs)
		})
	}
	limiter.Wait()

	if err := s.assembler.Assemble(ctx, ex, allocs); err != nil {
		return UploadResult{}, err
	}

	return UploadResult{
		DurationS: time.Since(start).Seconds(),
		Bytes:     sumSizes(allocs),
		Exnode:    ex,
	}, nil
}

func (s *Session) uploadWorker(
	ctx context.Context,
	rank int,
	f *os.File,
	q *jobqueue.Queue,
	sched schedule.UploadSchedule,
	schedMu *sync.Mutex,
	attempts *attemptTracker,
	closeIfDone func(int64),
	progress ProgressFunc,
	allocMu *sync.Mutex,
	allocs *[]allocation.Allocation,
) {
	log := s.Log.With(zap.Int("worker", rank))

	for {
		job, ok := q.Get(ctx)
		if !ok {
			return
		}

		buf := make([]byte, job.Size)
		n, err := f.ReadAt(buf, job.Offset)
		if err != nil && !(err == io.EOF && int64(n) == job.Size) {
			log.Error("read failed, dropping chunk", zap.Int64("offset", job.Offset), zap.Error(err))
			closeIfDone(-1)
			continue
		}
		buf = buf[:n]

		schedMu.Lock()
		d, err := sched.Get(schedule.Context{Offset: job.Offset, Size: job.Size, Data: buf})
		schedMu.Unlock()
		if err != nil {
			log.Error("no depot available", zap.Int64("offset", job.Offset), zap.Error(err))
			closeIfDone(-1)
			continue
		}

		drv, err := s.Registry.ByKind(d.Kind)
		if err != nil {
			log.Error("no driver for depot kind", zap.String("kind", d.Kind), zap.Error(err))
			closeIfDone(-1)
			continue
		}

		cctx, cancel := s.withTimeout(ctx)
		alloc, err := drv.MakeAllocation(cctx, buf, job.Offset, d, s.Cfg.Duration)
		cancel()
		if err != nil {
			if attempts.bump(job.Offset) {
				log.Debug("allocation failed, re-enqueueing", zap.Int64("offset", job.Offset), zap.Error(err))
				q.Put(job)
			} else {
				log.Warn("allocation failed, retry limit reached", zap.Int64("offset", job.Offset), zap.Error(err))
				closeIfDone(-1)
			}
			continue
		}

		if s.Cfg.VerifyChecksums {
			sum := sha256.Sum256(buf)
			alloc.Checksum = sum[:]
		}

		allocMu.Lock()
		*allocs = append(*allocs, alloc)
		allocMu.Unlock()

		s.records.append(TransferRecord{Direction: DirectionUpload, Allocation: alloc, Offset: job.Offset, Bytes: int64(len(buf))})
		if s.Viz != nil {
			s.Viz.Progress(s.ID, d.AccessPoint, int64(len(buf)), job.Offset)
		}
		if progress != nil {
			progress(DirectionUpload, d.AccessPoint, job.Offset, int64(len(buf)))
		}

		closeIfDone(-1)
	}
}

func sumSizes(allocs []allocation.Allocation) int64 {
	seen := make(map[int64]bool)
	var total int64
	for _, a := range allocs {
		if seen[a.Offset] {
			continue
		}
		seen[a.Offset] = true
		total += a.Size
	}
	return total
}
