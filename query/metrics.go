package query

import (
	vm "github.com/VictoriaMetrics/metrics"
)

var (
	metricFetches   = vm.NewCounter("tabular_backend_fetches_total")
	metricRecords   = vm.NewCounter("tabular_backend_records_total")
	metricCacheHits = vm.NewCounter("tabular_cache_hits_total")
	metricCommits   = vm.NewCounter("tabular_session_commits_total")
	metricAborts    = vm.NewCounter("tabular_session_aborts_total")
)
