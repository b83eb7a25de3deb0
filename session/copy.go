package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lorsio/lors/allocation"
	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/exnode"
	"github.com/lorsio/lors/internal/workq"
	"github.com/lorsio/lors/schedule"
)

// CopyOptions configures one Copy call beyond the Session's defaults.
type CopyOptions struct {
	// Schedule overrides the default round-robin upload schedule used to
	// pick destination depots.
	Schedule schedule.UploadSchedule
	// Progress, if set, is called after each extent copy succeeds.
	Progress ProgressFunc
}

// Copy resolves ref and replicates every extent of its exnode to a fresh
// set of destination depots via server-to-server Driver.Copy calls,
// fusing the upload and download schedules: source extents are visited in
// the order the source exnode stores them, and a destination depot is
// picked per extent from the upload schedule.
func (s *Session) Copy(ctx context.Context, ref string, opts CopyOptions) (result CopyResult, err error) {
	defer mon.Task()(&ctx)(&err)

	leave, err := s.enter()
	if err != nil {
		return CopyResult{}, err
	}
	defer leave()

	start := time.Now()

	srcEx, err := s.Meta.Resolve(ctx, ref)
	if err != nil {
		return CopyResult{}, errkinds.RegistryError.Wrap(err)
	}

	enabled := s.Depots.Enabled()
	if len(enabled) < s.Cfg.Copies {
		return CopyResult{}, errkinds.InsufficientDepots.New(
			"need %d enabled depots for %d copies per chunk, have %d", s.Cfg.Copies, s.Cfg.Copies, len(enabled))
	}

	uploadSchedule := opts.Schedule
	if uploadSchedule == nil {
		uploadSchedule = &schedule.BaseUploadSchedule{}
	}
	uploadSchedule.SetSource(s.Depots)

	if s.Viz != nil {
		s.Viz.Register(s.ID, srcEx.Name, srcEx.Size, len(enabled))
		defer s.Viz.Clear(s.ID)
	}

	now := nowMicros()
	dstEx := &exnode.Exnode{
		Name:    srcEx.Name,
		Size:    srcEx.Size,
		Mode:    exnode.ModeFile,
		Created: now,
		Updated: now,
	}

	var schedMu sync.Mutex
	var allocMu sync.Mutex
	var dstAllocs []allocation.Allocation
	attempts := newAttemptTracker()

	limiter := workq.NewLimiter(s.Cfg.Threads)
	for i, ext := range srcEx.Extents {
		i, ext := i, ext
		limiter.Go(ctx, func() {
			s.copyOne(ctx, i, ext, uploadSchedule, &schedMu, attempts, opts.Progress, &allocMu, &dstAllocs)
		})
	}
	limiter.Wait()

	if err := s.assembler.Assemble(ctx, dstEx, dstAllocs); err != nil {
		return CopyResult{}, err
	}

	return CopyResult{DurationS: time.Since(start).Seconds(), Exnode: dstEx}, nil
}

func (s *Session) copyOne(
	ctx context.Context,
	index int,
	src allocation.Allocation,
	uploadSchedule schedule.UploadSchedule,
	schedMu *sync.Mutex,
	attempts *attemptTracker,
	progress ProgressFunc,
	allocMu *sync.Mutex,
	dstAllocs *[]allocation.Allocation,
) {
	log := s.Log.With(zap.Int("extent", index))

	for {
		schedMu.Lock()
		dstDepot, err := uploadSchedule.Get(schedule.Context{Offset: src.Offset, Size: src.Size})
		schedMu.Unlock()
		if err != nil {
			log.Error("no destination depot available", zap.Int64("offset", src.Offset), zap.Error(err))
			return
		}

		drv, err := s.Registry.BySchema(src.Schema)
		if err != nil {
			log.Error("no driver for source schema", zap.String("schema", src.Schema), zap.Error(err))
			return
		}

		srcDepot, err := s.depotFor(src.Location)
		if err != nil {
			log.Error("no depot known for source allocation", zap.String("location", src.Location), zap.Error(err))
			return
		}

		cctx, cancel := s.withTimeout(ctx)
		dstAlloc, err := drv.Copy(cctx, src, dstDepot, srcDepot.Config, dstDepot.Config)
		cancel()
		if err != nil {
			if attempts.bump(src.Offset) {
				log.Debug("copy failed, retrying", zap.Int64("offset", src.Offset), zap.Error(err))
				continue
			}
			log.Warn("copy failed, retry limit reached", zap.Int64("offset", src.Offset), zap.Error(err))
			return
		}

		allocMu.Lock()
		*dstAllocs = append(*dstAllocs, dstAlloc)
		allocMu.Unlock()

		s.records.append(TransferRecord{Direction: DirectionUpload, Allocation: dstAlloc, Offset: src.Offset, Bytes: src.Size})
		if s.Viz != nil {
			s.Viz.Progress(s.ID, dstDepot.AccessPoint, src.Size, src.Offset)
		}
		if progress != nil {
			progress(DirectionUpload, dstDepot.AccessPoint, src.Offset, src.Size)
		}
		return
	}
}
