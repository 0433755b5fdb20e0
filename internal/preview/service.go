package preview

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"openroom/internal/adjust"
	"openroom/internal/gpu"
	"openroom/internal/memory"
	"openroom/internal/metrics"
	"openroom/internal/raster"
	"openroom/internal/recipe"
	"openroom/internal/workers"
)

const (
	// DefaultPreviewDimension is used when the caller gives no size.
	DefaultPreviewDimension = 1440
	// ThumbnailDimension is the longer side of every thumbnail.
	ThumbnailDimension = 360
)

// Options configures a Service.
type Options struct {
	// ThumbnailDir is where thumbnails persist; empty disables persistence.
	ThumbnailDir string
	// PreviewWorkers and ThumbnailWorkers bound concurrent renders.
	PreviewWorkers   int
	ThumbnailWorkers int
	// GPU is reported in stats; it may be nil.
	GPU *gpu.Context
	// Memory, when set, holds new renders while memory is critical.
	Memory *memory.Monitor
}

// Service renders previews and thumbnails. It owns the preview cache.
type Service struct {
	decoder Decoder
	scaler  Scaler
	engine  *adjust.Engine
	gpu     *gpu.Context
	memory  *memory.Monitor

	cache  *Cache
	thumbs *ThumbnailStore

	previewPool   *workers.Pool
	thumbnailPool *workers.Pool
	thumbFlight   singleflight.Group
}

// NewService wires a Service together.
func NewService(decoder Decoder, scaler Scaler, engine *adjust.Engine, opts Options) *Service {
	return &Service{
		decoder:       decoder,
		scaler:        scaler,
		engine:        engine,
		gpu:           opts.GPU,
		memory:        opts.Memory,
		cache:         NewCache(decoder, scaler),
		thumbs:        NewThumbnailStore(opts.ThumbnailDir),
		previewPool:   workers.NewPool("preview", opts.PreviewWorkers),
		thumbnailPool: workers.NewPool("thumbnail", opts.ThumbnailWorkers),
	}
}

// Cache exposes the preview cache.
func (s *Service) Cache() *Cache { return s.cache }

// Thumbnails exposes the thumbnail store.
func (s *Service) Thumbnails() *ThumbnailStore { return s.thumbs }

// RenderPreview returns a PNG of the asset at maxDimension (clamped to the
// preview band; 0 means DefaultPreviewDimension) with rec applied. A nil rec
// renders the unadjusted preview. Decode failures are returned.
func (s *Service) RenderPreview(ctx context.Context, assetID, path string, maxDimension int, rec *recipe.EditRecipe) ([]byte, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultPreviewDimension
	}

	var out []byte
	err := s.run(ctx, s.previewPool, func() error {
		start := time.Now()
		defer func() {
			metrics.RenderDuration.WithLabelValues("preview").Observe(time.Since(start).Seconds())
		}()

		base, tier, err := s.cache.Lookup(assetID, path, maxDimension)
		if err != nil {
			return err
		}
		graded, grading := s.engine.Render(base, rec)
		TraceFrom(ctx).record("preview", assetID, tier, grading)
		out, err = Encode(graded)
		return err
	})
	if err != nil {
		metrics.RenderErrorsTotal.WithLabelValues("preview").Inc()
		log.Warn("preview %s (%s) failed: %v", assetID, path, err)
		return nil, err
	}
	return out, nil
}

// Thumbnail returns the asset's stored thumbnail, rendering and storing it
// first when missing. Assets that cannot be decoded get a placeholder, so
// the only errors are cancellation and encoding failures.
func (s *Service) Thumbnail(ctx context.Context, assetID, path string) ([]byte, error) {
	trace := TraceFrom(ctx)
	if data, ok := s.thumbs.Load(assetID); ok {
		metrics.ThumbnailCacheTotal.WithLabelValues("hit").Inc()
		trace.record("thumbnail", assetID, TierDisk, adjust.GradingNone)
		return data, nil
	}

	// Joined callers share one render, detached from any single caller's
	// ctx; each caller waits on its own.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.thumbFlight.DoChan(assetID, func() (interface{}, error) {
		if data, ok := s.thumbs.Load(assetID); ok {
			return thumbResult{data, TierDisk}, nil
		}

		var res thumbResult
		err := s.run(flightCtx, s.thumbnailPool, func() error {
			start := time.Now()
			defer func() {
				metrics.RenderDuration.WithLabelValues("thumbnail").Observe(time.Since(start).Seconds())
			}()

			img, tier := s.renderThumbnail(assetID, path)
			data, err := Encode(img)
			res = thumbResult{data, tier}
			return err
		})
		if err != nil {
			return nil, err
		}

		if s.thumbs.Enabled() {
			if err := s.thumbs.Save(assetID, res.data); err != nil {
				metrics.ThumbnailWriteErrors.Inc()
				log.Warn("failed to store thumbnail %s: %v", assetID, err)
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		metrics.RenderErrorsTotal.WithLabelValues("thumbnail").Inc()
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.RenderErrorsTotal.WithLabelValues("thumbnail").Inc()
			return nil, res.Err
		}
		out := res.Val.(thumbResult)
		trace.record("thumbnail", assetID, out.tier, adjust.GradingNone)
		return out.data, nil
	}
}

// run waits out memory pressure, then runs fn in pool.
func (s *Service) run(ctx context.Context, pool *workers.Pool, fn func() error) error {
	if s.memory != nil {
		if err := s.memory.WaitIfPaused(ctx); err != nil {
			return err
		}
	}
	return pool.Do(ctx, fn)
}

type thumbResult struct {
	data []byte
	tier Tier
}

func (s *Service) renderThumbnail(assetID, path string) (*raster.Image, Tier) {
	img, err := s.decoder.Decode(path)
	if err != nil {
		metrics.ThumbnailCacheTotal.WithLabelValues("placeholder").Inc()
		log.Debug("thumbnail %s: using placeholder: %v", assetID, err)
		return s.scaler.Fit(Placeholder(), ThumbnailDimension), TierPlaceholder
	}
	metrics.ThumbnailCacheTotal.WithLabelValues("miss").Inc()
	return s.scaler.Downscale(img, ThumbnailDimension), TierDecoded
}

// ClearCache empties the preview cache. Call it whenever a new folder is
// opened, since asset ids are not stable across scans.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// GetStats implements metrics.StatsProvider.
func (s *Service) GetStats() metrics.Stats {
	masters, variants := s.cache.Counts()
	stats := metrics.Stats{
		ResidentMasters: masters,
		Variants:        variants,
		PreviewJobs:     s.previewPool.Active(),
		ThumbnailJobs:   s.thumbnailPool.Active(),
	}
	if s.gpu != nil {
		stats.GPUState = int(s.gpu.State())
	}
	return stats
}
