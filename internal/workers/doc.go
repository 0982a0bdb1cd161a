/*
Package workers sizes worker pools and bounds concurrent work.

# Worker counts

Count and the ForCPU/ForIO helpers derive a pool size from GOMAXPROCS,
which follows the container CPU limit, rather than runtime.NumCPU, which
reports host CPUs. The indexer sizes its default probe gate with ForCPU
and its directory walker with ForIO:

	gate := workers.NewGate(workers.ForCPU(4))
	walkers := workers.ForIO(3)

The MEDIA_WORKERS environment variable overrides the computed value (still
capped by the limit argument).

# Gates

A Gate is a counting semaphore. The orchestrator uses one to allow at most
four probes to touch the codec library at the same time. The server hands
the same gate to the indexer so background indexing counts against that
limit. Permits come back as a release function so the common pattern
releases on every exit path:

	release, err := gate.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

Closing a gate wakes blocked callers with ErrGateClosed, which is how
shutdown unblocks probes still waiting for a permit.
*/
package workers
