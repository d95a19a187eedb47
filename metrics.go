package geoid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsConverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoid_records_converted_total",
		Help: "The total number of converted records",
	})
	recordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoid_records_rejected_total",
		Help: "The total number of rejected records by reason",
	}, []string{"reason"})
	tileCacheLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoid_tile_cache_loads_total",
		Help: "The total number of tiles loaded into the tile cache",
	})
	emptyTiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoid_empty_tiles_total",
		Help: "The total number of tiles found to contain no data",
	})
	missingGridCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoid_missing_grid_cache_hits_total",
		Help: "The total number of hits on the missing grid cache",
	})
	gridCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoid_grid_cache_hits_total",
		Help: "The total number of hits on the grid cache",
	})
	gridCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoid_grid_cache_misses_total",
		Help: "The total number of misses on the grid cache",
	})
	gridCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoid_grid_cache_evictions_total",
		Help: "The total number of evictions from the grid cache",
	})
)
