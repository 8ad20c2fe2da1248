package monitor

import (
	"context"
	"time"
)

const (
	// DefaultScale is the reduction ground sampling distance in meters.
	DefaultScale = 5000

	// SnapshotWindow is the PM2.5 averaging window for the current reading.
	SnapshotWindow = 24 * time.Hour
	// AnnualWindow is the averaging window for the annual documents.
	AnnualWindow = 365 * 24 * time.Hour
)

// BuildSnapshot assembles the current reading: the mean PM2.5 over the last
// 24 hours and the temperature of the most recent hourly image.
func BuildSnapshot(ctx context.Context, r Reducer, run Run, site Site, scale float64) Reading {
	pm := r.Reduce(ctx, run, Query{
		Dataset: PM25,
		Site:    site,
		From:    run.Now.Add(-SnapshotWindow),
		To:      run.Now,
		Scale:   scale,
	})

	temp := r.Reduce(ctx, run, Query{
		Dataset: Temperature,
		Site:    site,
		Latest:  true,
		Scale:   scale,
	})

	return Reading{
		Timestamp:    FormatTimestamp(run.Now),
		PM25:         PM25.Value(pm),
		TemperatureC: Temperature.Value(temp),
	}
}

// BuildAnnual reduces the 365-day temporal mean of ds. The generation time is
// read from clock after the reduction, so two aggregates built back to back
// carry slightly different timestamps.
func BuildAnnual(ctx context.Context, r Reducer, run Run, site Site, ds Dataset, scale float64, clock func() time.Time) AnnualAggregate {
	res := r.Reduce(ctx, run, Query{
		Dataset: ds,
		Site:    site,
		From:    run.Now.Add(-AnnualWindow),
		To:      run.Now,
		Scale:   scale,
	})

	return AnnualAggregate{
		Metric:    ds.Metric,
		Value:     ds.Value(res),
		Dataset:   ds.Description,
		Generated: FormatTimestamp(clock()),
	}
}
