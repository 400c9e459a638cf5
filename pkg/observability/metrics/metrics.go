package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	rowsCommitted     atomic.Int64
	rowsFailed        atomic.Int64
	uploadsSucceeded  atomic.Int64
	uploadsFailed     atomic.Int64
	predictionsServed atomic.Int64
	reportCacheHits   atomic.Int64
	reportCacheMisses atomic.Int64
)

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	RowsCommitted     int64
	RowsFailed        int64
	UploadsSucceeded  int64
	UploadsFailed     int64
	PredictionsServed int64
	ReportCacheHits   int64
	ReportCacheMisses int64
}

func ObserveRows(committed, failed int) {
	rowsCommitted.Add(int64(committed))
	rowsFailed.Add(int64(failed))
}

func ObserveUpload(ok bool) {
	if ok {
		uploadsSucceeded.Add(1)
		return
	}
	uploadsFailed.Add(1)
}

func ObservePrediction() {
	predictionsServed.Add(1)
}

func ObserveCacheLookup(hit bool) {
	if hit {
		reportCacheHits.Add(1)
		return
	}
	reportCacheMisses.Add(1)
}

func Read() Snapshot {
	return Snapshot{
		RowsCommitted:     rowsCommitted.Load(),
		RowsFailed:        rowsFailed.Load(),
		UploadsSucceeded:  uploadsSucceeded.Load(),
		UploadsFailed:     uploadsFailed.Load(),
		PredictionsServed: predictionsServed.Load(),
		ReportCacheHits:   reportCacheHits.Load(),
		ReportCacheMisses: reportCacheMisses.Load(),
	}
}

type counter struct {
	name string
	help string
	val  int64
}

func WritePrometheus(w http.ResponseWriter) {
	s := Read()
	counters := []counter{
		{"healix_ingestion_rows_committed_total", "Rows committed by batch ingestion.", s.RowsCommitted},
		{"healix_ingestion_rows_failed_total", "Rows rejected by batch ingestion.", s.RowsFailed},
		{"healix_ingestion_uploads_succeeded_total", "Uploads that finished without error.", s.UploadsSucceeded},
		{"healix_ingestion_uploads_failed_total", "Uploads that aborted.", s.UploadsFailed},
		{"healix_serving_predictions_total", "Prediction requests answered.", s.PredictionsServed},
		{"healix_insights_cache_hits_total", "Report cache hits.", s.ReportCacheHits},
		{"healix_insights_cache_misses_total", "Report cache misses.", s.ReportCacheMisses},
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(w, "%s %d\n", c.name, c.val)
	}
}
