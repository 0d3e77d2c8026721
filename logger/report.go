package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Running totals since process start, reported by StartReport.
var (
	pageReads         int64
	pageBytes         int64
	snapshotsAccepted int64
	snapshotsRejected int64
	cycleFailures     int64
	sinkWrites        int64
)

func IncrementPageRead(size int) {
	atomic.AddInt64(&pageReads, 1)
	atomic.AddInt64(&pageBytes, int64(size))
}

func IncrementSnapshotAccepted() { atomic.AddInt64(&snapshotsAccepted, 1) }
func IncrementSnapshotRejected() { atomic.AddInt64(&snapshotsRejected, 1) }
func IncrementCycleFailure()     { atomic.AddInt64(&cycleFailures, 1) }
func IncrementSinkWrite()        { atomic.AddInt64(&sinkWrites, 1) }

// ReportCounters is a point-in-time copy of the running totals.
type ReportCounters struct {
	PageReads         int64
	PageBytes         int64
	SnapshotsAccepted int64
	SnapshotsRejected int64
	CycleFailures     int64
	SinkWrites        int64
}

func Counters() ReportCounters {
	return ReportCounters{
		PageReads:         atomic.LoadInt64(&pageReads),
		PageBytes:         atomic.LoadInt64(&pageBytes),
		SnapshotsAccepted: atomic.LoadInt64(&snapshotsAccepted),
		SnapshotsRejected: atomic.LoadInt64(&snapshotsRejected),
		CycleFailures:     atomic.LoadInt64(&cycleFailures),
		SinkWrites:        atomic.LoadInt64(&sinkWrites),
	}
}

// StartReport logs the running totals and host usage every interval until
// ctx is done, and publishes them to CloudWatch when it is enabled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memMB := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memMB = float64(vm.Used) / 1024 / 1024
	}

	c := Counters()
	log.WithComponent("report").WithFields(Fields{
		"page_reads":         c.PageReads,
		"page_bytes":         c.PageBytes,
		"snapshots_accepted": c.SnapshotsAccepted,
		"snapshots_rejected": c.SnapshotsRejected,
		"cycle_failures":     c.CycleFailures,
		"sink_writes":        c.SinkWrites,
		"goroutines":         runtime.NumGoroutine(),
		"cpu_percent":        cpuPct,
		"memory_mb":          int64(memMB),
	}).Info("runtime report")

	count := func(name string, v int64) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{MetricName: aws.String(name), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(v))}
	}
	publishMetrics(ctx, []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memMB)},
		{MetricName: aws.String("PageBytes"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(c.PageBytes))},
		count("PageReads", c.PageReads),
		count("SnapshotsAccepted", c.SnapshotsAccepted),
		count("SnapshotsRejected", c.SnapshotsRejected),
		count("CycleFailures", c.CycleFailures),
		count("SinkWrites", c.SinkWrites),
	})
}
