package fhirflat

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks conversion and validation metrics using lock-free atomic
// operations. All methods are safe for concurrent use.
type Metrics struct {
	// Row and resource counts
	rowsRead       atomic.Uint64
	resourcesBuilt atomic.Uint64
	resourcesValid atomic.Uint64

	// Timing (stored as nanoseconds)
	convertTimeTotal atomic.Uint64
	convertTimeMin   atomic.Uint64
	convertTimeMax   atomic.Uint64

	// Cache metrics
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// Issue counts by severity
	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64

	// Per-resource-type stats
	resourceStats sync.Map // map[string]*resourceMetrics
}

// resourceMetrics tracks metrics for a single resource type.
type resourceMetrics struct {
	rows      atomic.Uint64
	rejected  atomic.Uint64
	totalTime atomic.Uint64 // nanoseconds
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.convertTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordRows records rows read from the raw data file.
func (m *Metrics) RecordRows(n int) {
	m.rowsRead.Add(uint64(n))
}

// RecordConversion records a completed row conversion.
func (m *Metrics) RecordConversion(duration time.Duration, valid bool) {
	m.resourcesBuilt.Add(1)
	if valid {
		m.resourcesValid.Add(1)
	}

	ns := uint64(duration.Nanoseconds())
	m.convertTimeTotal.Add(ns)

	// Update min (CAS loop)
	for {
		old := m.convertTimeMin.Load()
		if ns >= old {
			break
		}
		if m.convertTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (CAS loop)
	for {
		old := m.convertTimeMax.Load()
		if ns <= old {
			break
		}
		if m.convertTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordIssue records an issue based on severity.
func (m *Metrics) RecordIssue(severity IssueSeverity) {
	switch severity {
	case SeverityError, SeverityFatal:
		m.errorsTotal.Add(1)
	case SeverityWarning:
		m.warningsTotal.Add(1)
	case SeverityInformation:
		m.infosTotal.Add(1)
	}
}

// RecordResource records metrics for one row of a resource type.
func (m *Metrics) RecordResource(resourceType string, duration time.Duration, rejected bool) {
	rm := m.getOrCreateResourceMetrics(resourceType)
	rm.rows.Add(1)
	if rejected {
		rm.rejected.Add(1)
	}
	rm.totalTime.Add(uint64(duration.Nanoseconds()))
}

func (m *Metrics) getOrCreateResourceMetrics(name string) *resourceMetrics {
	if v, ok := m.resourceStats.Load(name); ok {
		return v.(*resourceMetrics)
	}
	rm := &resourceMetrics{}
	actual, _ := m.resourceStats.LoadOrStore(name, rm)
	return actual.(*resourceMetrics)
}

// --- Query Methods ---

// RowsRead returns the total number of raw rows read.
func (m *Metrics) RowsRead() uint64 {
	return m.rowsRead.Load()
}

// ResourcesBuilt returns the total number of resources constructed.
func (m *Metrics) ResourcesBuilt() uint64 {
	return m.resourcesBuilt.Load()
}

// ResourcesValid returns the number of resources that passed validation.
func (m *Metrics) ResourcesValid() uint64 {
	return m.resourcesValid.Load()
}

// ValidRate returns the fraction of valid resources (0.0 to 1.0).
func (m *Metrics) ValidRate() float64 {
	total := m.resourcesBuilt.Load()
	if total == 0 {
		return 0
	}
	return float64(m.resourcesValid.Load()) / float64(total)
}

// AverageConversionTime returns the average per-row conversion duration.
func (m *Metrics) AverageConversionTime() time.Duration {
	total := m.resourcesBuilt.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.convertTimeTotal.Load() / total)
}

// MinConversionTime returns the minimum conversion duration.
func (m *Metrics) MinConversionTime() time.Duration {
	minVal := m.convertTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal)
}

// MaxConversionTime returns the maximum conversion duration.
func (m *Metrics) MaxConversionTime() time.Duration {
	return time.Duration(m.convertTimeMax.Load())
}

// CacheHits returns the total cache hits.
func (m *Metrics) CacheHits() uint64 {
	return m.cacheHits.Load()
}

// CacheMisses returns the total cache misses.
func (m *Metrics) CacheMisses() uint64 {
	return m.cacheMisses.Load()
}

// CacheHitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// ErrorsTotal returns the total number of error issues recorded.
func (m *Metrics) ErrorsTotal() uint64 {
	return m.errorsTotal.Load()
}

// WarningsTotal returns the total number of warning issues recorded.
func (m *Metrics) WarningsTotal() uint64 {
	return m.warningsTotal.Load()
}

// ResourceStats describes accumulated stats for one resource type.
type ResourceStats struct {
	ResourceType string        `json:"resourceType"`
	Rows         uint64        `json:"rows"`
	Rejected     uint64        `json:"rejected"`
	TotalTime    time.Duration `json:"totalTime"`
}

// Snapshot captures a point-in-time view of all metrics.
type Snapshot struct {
	RowsRead       uint64          `json:"rowsRead"`
	ResourcesBuilt uint64          `json:"resourcesBuilt"`
	ResourcesValid uint64          `json:"resourcesValid"`
	Errors         uint64          `json:"errors"`
	Warnings       uint64          `json:"warnings"`
	AvgConversion  time.Duration   `json:"avgConversion"`
	CacheHitRate   float64         `json:"cacheHitRate"`
	Resources      []ResourceStats `json:"resources,omitempty"`
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		RowsRead:       m.RowsRead(),
		ResourcesBuilt: m.ResourcesBuilt(),
		ResourcesValid: m.ResourcesValid(),
		Errors:         m.ErrorsTotal(),
		Warnings:       m.WarningsTotal(),
		AvgConversion:  m.AverageConversionTime(),
		CacheHitRate:   m.CacheHitRate(),
	}

	m.resourceStats.Range(func(key, value any) bool {
		rm := value.(*resourceMetrics)
		s.Resources = append(s.Resources, ResourceStats{
			ResourceType: key.(string),
			Rows:         rm.rows.Load(),
			Rejected:     rm.rejected.Load(),
			TotalTime:    time.Duration(rm.totalTime.Load()),
		})
		return true
	})

	return s
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.rowsRead.Store(0)
	m.resourcesBuilt.Store(0)
	m.resourcesValid.Store(0)
	m.convertTimeTotal.Store(0)
	m.convertTimeMin.Store(^uint64(0))
	m.convertTimeMax.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.infosTotal.Store(0)
	m.resourceStats.Range(func(key, _ any) bool {
		m.resourceStats.Delete(key)
		return true
	})
}
