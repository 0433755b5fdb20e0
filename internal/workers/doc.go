/*
Package workers sizes and bounds the render concurrency of the service.

Rendering a preview is CPU-heavy (decode, resize, grading, PNG encode), so
the number of renders allowed in flight is derived from GOMAXPROCS, which
Go 1.19+ sets from container CPU limits. runtime.NumCPU would report the
host's CPUs and oversubscribe a constrained container.

# Sizing

	n := workers.ForCPU(8)    // 1 per CPU, at most 8
	n := workers.ForMixed(12) // 1.5 per CPU: thumbnails read and write disk
	n := workers.Count(3.0, 0)

The RENDER_WORKERS environment variable overrides the computed value (still
capped by the limit).

# Pools

A Pool admits at most n jobs at once. Callers block in Do until a slot is
free or their context ends:

	pool := workers.NewPool("preview", workers.ForCPU(0))
	err := pool.Do(ctx, func() error {
		out, err = svc.render(...)
		return err
	})
*/
package workers
