package enrichmodule

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// loadThrottler pauses batch scheduling while the host is saturated,
// so background enrichment never starves the interactive server.
type loadThrottler struct {
	cpuThreshold float64
	memThreshold float64
	checkEvery   time.Duration
	log          hclog.Logger

	sample func(ctx context.Context) (cpuPct, memPct float64, err error)
	sleep  func(ctx context.Context, d time.Duration) error
}

func newLoadThrottler(cpuThreshold, memThreshold float64, log hclog.Logger) *loadThrottler {
	return &loadThrottler{
		cpuThreshold: cpuThreshold,
		memThreshold: memThreshold,
		checkEvery:   2 * time.Second,
		log:          log.Named("throttle"),
		sample:       sampleLoad,
		sleep:        sleepCtx,
	}
}

func sampleLoad(ctx context.Context) (float64, float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 500*time.Millisecond, false)
	if err != nil || len(percents) == 0 {
		return 0, 0, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return percents[0], vm.UsedPercent, nil
}

// waitUntilIdle blocks between batches while host load is above the
// configured thresholds. Sampling failures never block enrichment.
func (t *loadThrottler) waitUntilIdle(ctx context.Context) error {
	for {
		cpuPct, memPct, err := t.sample(ctx)
		if err != nil {
			t.log.Debug("load sampling failed, proceeding", "error", err)
			return nil
		}
		if cpuPct < t.cpuThreshold && memPct < t.memThreshold {
			return nil
		}
		t.log.Info("host under load, pausing enrichment", "cpu", cpuPct, "mem", memPct)
		if err := t.sleep(ctx, t.checkEvery); err != nil {
			return err
		}
	}
}
