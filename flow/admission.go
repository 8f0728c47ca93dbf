package flow

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Resources declares resource capacity (on an engine) or requirements
// (on a task). Admission is advisory: the engine never measures actual
// usage, it only sequences task starts so declared demand stays within
// declared capacity.
type Resources struct {
	// CPU is a logical core count.
	CPU int

	// MemoryGB is memory in whole gigabytes.
	MemoryGB int

	// GPU is a device count.
	GPU int
}

func (r Resources) empty() bool {
	return r.CPU <= 0 && r.MemoryGB <= 0 && r.GPU <= 0
}

// admissionGate sequences resource-hungry task starts against declared
// engine capacity. Each dimension is an independent weighted semaphore;
// a task acquires all its declared dimensions before running and
// releases them when done. Requirements exceeding total capacity are
// clamped so a single oversized task still runs alone rather than
// deadlocking.
type admissionGate struct {
	capacity Resources
	cpu      *semaphore.Weighted
	memory   *semaphore.Weighted
	gpu      *semaphore.Weighted
}

func newAdmissionGate(capacity Resources) *admissionGate {
	g := &admissionGate{capacity: capacity}
	if capacity.CPU > 0 {
		g.cpu = semaphore.NewWeighted(int64(capacity.CPU))
	}
	if capacity.MemoryGB > 0 {
		g.memory = semaphore.NewWeighted(int64(capacity.MemoryGB))
	}
	if capacity.GPU > 0 {
		g.gpu = semaphore.NewWeighted(int64(capacity.GPU))
	}
	return g
}

// acquire blocks until the declared requirements fit, returning a
// release function. Acquisition order is fixed (cpu, memory, gpu) so
// concurrent acquirers cannot deadlock against each other.
func (g *admissionGate) acquire(ctx context.Context, need Resources) (func(), error) {
	if g == nil || need.empty() {
		return func() {}, nil
	}

	type held struct {
		sem    *semaphore.Weighted
		weight int64
	}
	var acquired []held
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].sem.Release(acquired[i].weight)
		}
	}

	dims := []struct {
		sem  *semaphore.Weighted
		need int
		cap  int
	}{
		{g.cpu, need.CPU, g.capacity.CPU},
		{g.memory, need.MemoryGB, g.capacity.MemoryGB},
		{g.gpu, need.GPU, g.capacity.GPU},
	}
	for _, d := range dims {
		if d.sem == nil || d.need <= 0 {
			continue
		}
		weight := int64(d.need)
		if d.need > d.cap {
			weight = int64(d.cap)
		}
		if err := d.sem.Acquire(ctx, weight); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, held{d.sem, weight})
	}
	return release, nil
}
