/*
Package memory keeps decoded image buffers from pushing the process past its
container memory limit.

# GOMEMLIMIT

[ConfigureFromEnv] sets the Go soft memory limit at startup:

  - GOMEMLIMIT: if set, it wins and is only reported
  - MEMORY_LIMIT: container limit in bytes (for example from the Kubernetes Downward API)
  - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default: 0.85)

The remainder is left for libvips and GPU staging buffers, which allocate
outside the Go heap.

# Monitor

A [Monitor] samples heap usage against the limit. Above the critical mark it
pauses new renders and runs the OnCritical hook (the service binary uses it
to drop cached preview variants); once usage falls below the high mark,
renders resume. With no limit configured the monitor does nothing.

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.OnCritical(svc.Cache().TrimVariants)
	monitor.Start()
	defer monitor.Stop()

	if err := monitor.WaitIfPaused(ctx); err != nil {
	    return err
	}
*/
package memory
