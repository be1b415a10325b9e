package persistence

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/pkg/errors"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model"
)

// Querier returns the latest reading of every device seen in the last
// minutes.
type Querier interface {
	LatestReadings(ctx context.Context, minutes int) ([]model.DecodedReading, error)
}

// InfluxQuerier reads the latest readings back from the bucket.
type InfluxQuerier struct {
	client      influxdb2.Client
	org         string
	bucket      string
	measurement string
}

func NewInfluxQuerier(client influxdb2.Client, org, bucket, measurement string) *InfluxQuerier {
	return &InfluxQuerier{
		client:      client,
		org:         org,
		bucket:      bucket,
		measurement: sanitizeMeasurement(measurement),
	}
}

func buildLatestFlux(bucket, measurement string, minutes int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> last()
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
`, bucket, minutes, measurement)
}

func (q *InfluxQuerier) LatestReadings(ctx context.Context, minutes int) ([]model.DecodedReading, error) {
	res, err := q.client.QueryAPI(q.org).Query(ctx, buildLatestFlux(q.bucket, q.measurement, minutes))
	if err != nil {
		return nil, errors.Wrap(err, "influx query error")
	}
	defer res.Close()

	rows := make([]rowValues, 0)
	for res.Next() {
		rec := res.Record()
		rows = append(rows, rowValues{values: rec.Values(), time: rec.Time()})
	}
	if res.Err() != nil {
		return nil, errors.Wrap(res.Err(), "influx result error")
	}
	return latestPerDevice(rows), nil
}

type rowValues struct {
	values map[string]interface{}
	time   time.Time
}

// latestPerDevice keeps the newest row per device. Rows of one point can be
// split when its fields were last written at different times.
func latestPerDevice(rows []rowValues) []model.DecodedReading {
	byDevice := make(map[string]model.DecodedReading)
	for _, row := range rows {
		r := readingFromValues(row.values)
		if r.DeviceID == "" {
			continue
		}
		r.ReceivedAt = row.time.UTC()
		if cur, ok := byDevice[r.DeviceID]; ok && !r.ReceivedAt.After(cur.ReceivedAt) {
			continue
		}
		byDevice[r.DeviceID] = r
	}
	cache := NewCache()
	for _, r := range byDevice {
		cache.Put(r)
	}
	return cache.Latest()
}
