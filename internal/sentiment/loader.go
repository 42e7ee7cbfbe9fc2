// Package sentiment defines the sentiment read port consumed by
// internal/features and a flat-file CSV adapter for it.
package sentiment

import (
	"context"
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// Loader is the sentiment read port: given a path it was configured
// with, it returns the schema (column names) and the causally-ordered
// points the pipeline will lag-align against bar timestamps.
type Loader interface {
	Load(ctx context.Context) (types.SentimentSchema, []types.SentimentPoint, error)
}

// CSVLoader reads sentiment points from a CSV with header
// timestamp_utc,<metric1>,<metric2>,..., grounded on the same
// file-replay shape as marketdata.CSVLoader since the spec's
// `[paths] sentiment_path` names a flat file, not a service.
type CSVLoader struct {
	path string
}

// NewCSVLoader returns a Loader reading sentiment points from path.
// An empty path is valid: Load then returns an empty schema/series,
// letting callers with no `[paths] sentiment_path` configured skip
// sentiment columns entirely.
func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{path: path}
}

func (l *CSVLoader) Load(_ context.Context) (types.SentimentSchema, []types.SentimentPoint, error) {
	if l.path == "" {
		return nil, nil, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, nil, kairoserr.IO("sentiment.Load", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, kairoserr.IO("sentiment.Load", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	schema := make(types.SentimentSchema, 0, len(header)-1)
	for _, name := range header[1:] {
		schema = append(schema, name)
	}

	points := make([]types.SentimentPoint, 0, len(records)-1)
	for _, row := range records[1:] {
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, nil, kairoserr.DataQuality("sentiment.Load", err)
		}
		metrics := make(map[string]float64, len(schema))
		for i, name := range schema {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, nil, kairoserr.DataQuality("sentiment.Load", err)
			}
			metrics[name] = v
		}
		points = append(points, types.SentimentPoint{TimestampUTC: ts, Metrics: metrics})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampUTC < points[j].TimestampUTC
	})
	return schema, points, nil
}
