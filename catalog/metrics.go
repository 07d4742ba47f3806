package catalog

import (
	"expvar"
	"fmt"
)

// latencyBuckets defines the buckets for latency histograms (in seconds).
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// Metrics holds all expvar variables for a Catalog instance.
type Metrics struct {
	PublishedGlobally bool // Indicates if the metrics are published to the global expvar namespace.

	InsertTotal        *expvar.Int
	UpdateTotal        *expvar.Int
	DeleteTotal        *expvar.Int
	GetTotal           *expvar.Int
	NotFoundTotal      *expvar.Int
	QueryTotal         *expvar.Int
	QueryErrorsTotal   *expvar.Int
	CategoryQueryTotal *expvar.Int

	FilesIndexed      *expvar.Int
	CategoriesTracked *expvar.Int

	InsertLatencyHist *expvar.Map
	GetLatencyHist    *expvar.Map
	DeleteLatencyHist *expvar.Map
	QueryLatencyHist  *expvar.Map
}

// NewMetrics creates and initializes a Metrics struct. When publishGlobally
// is set, every variable is registered in the process-wide expvar namespace
// under the given prefix; otherwise the variables stay private to the
// instance, which keeps parallel tests from colliding on names.
func NewMetrics(publishGlobally bool, prefix string) *Metrics {
	var newIntFunc func(string) *expvar.Int
	var newMapFunc func(string) *expvar.Map

	if publishGlobally {
		newIntFunc = publishExpvarInt
		newMapFunc = publishExpvarMap
	} else {
		newIntFunc = func(_ string) *expvar.Int { return new(expvar.Int) }
		newMapFunc = func(_ string) *expvar.Map {
			m := new(expvar.Map)
			m.Init()
			return m
		}
	}

	m := &Metrics{
		PublishedGlobally:  publishGlobally,
		InsertTotal:        newIntFunc(prefix + "insert_total"),
		UpdateTotal:        newIntFunc(prefix + "update_total"),
		DeleteTotal:        newIntFunc(prefix + "delete_total"),
		GetTotal:           newIntFunc(prefix + "get_total"),
		NotFoundTotal:      newIntFunc(prefix + "not_found_total"),
		QueryTotal:         newIntFunc(prefix + "query_total"),
		QueryErrorsTotal:   newIntFunc(prefix + "query_errors_total"),
		CategoryQueryTotal: newIntFunc(prefix + "category_query_total"),

		FilesIndexed:      newIntFunc(prefix + "files_indexed"),
		CategoriesTracked: newIntFunc(prefix + "categories_tracked"),

		InsertLatencyHist: newMapFunc(prefix + "insert_latency_seconds"),
		GetLatencyHist:    newMapFunc(prefix + "get_latency_seconds"),
		DeleteLatencyHist: newMapFunc(prefix + "delete_latency_seconds"),
		QueryLatencyHist:  newMapFunc(prefix + "query_latency_seconds"),
	}

	histMaps := []*expvar.Map{
		m.InsertLatencyHist, m.GetLatencyHist, m.DeleteLatencyHist, m.QueryLatencyHist,
	}
	for _, hm := range histMaps {
		hm.Set("count", new(expvar.Int))
		hm.Set("sum", new(expvar.Float))
		for _, b := range latencyBuckets {
			hm.Set(fmt.Sprintf("le_%.3f", b), new(expvar.Int))
		}
		hm.Set("le_inf", new(expvar.Int))
	}
	return m
}

// observeLatency records the duration in the provided histogram map.
func observeLatency(histMap *expvar.Map, durationSeconds float64) {
	if histMap == nil {
		return
	}
	if countVar := histMap.Get("count"); countVar != nil {
		if countInt, ok := countVar.(*expvar.Int); ok {
			countInt.Add(1)
		}
	}
	if sumVar := histMap.Get("sum"); sumVar != nil {
		if sumFloat, ok := sumVar.(*expvar.Float); ok {
			sumFloat.Add(durationSeconds)
		}
	}

	// For a cumulative histogram, a value that fits in a smaller bucket
	// must also be counted in all larger buckets.
	for _, b := range latencyBuckets {
		bucketName := fmt.Sprintf("le_%.3f", b)
		if durationSeconds <= b {
			if bucketVar := histMap.Get(bucketName); bucketVar != nil {
				if bucketInt, ok := bucketVar.(*expvar.Int); ok {
					bucketInt.Add(1)
				}
			}
		}
	}
	// All finite observations are less than +Inf.
	if infVar := histMap.Get("le_inf"); infVar != nil {
		if infInt, ok := infVar.(*expvar.Int); ok {
			infInt.Add(1)
		}
	}
}

// publishExpvarInt safely publishes an expvar.Int.
// If the name already exists and is an *expvar.Int, it resets it and returns it.
// If the name exists but is not an *expvar.Int, it panics.
// If the name does not exist, it creates and returns a new one.
func publishExpvarInt(name string) *expvar.Int {
	v := expvar.Get(name)
	if v == nil {
		return expvar.NewInt(name)
	}
	if iv, ok := v.(*expvar.Int); ok {
		iv.Set(0) // Reset existing
		return iv
	}
	panic(fmt.Sprintf("expvar: trying to publish Int %s but variable already exists with different type %T", name, v))
}

// publishExpvarMap safely publishes an expvar.Map.
// If the name already exists and is an *expvar.Map, it returns it; the
// caller resets the sub-metrics. If the name exists with a different type,
// it panics.
func publishExpvarMap(name string) *expvar.Map {
	v := expvar.Get(name)
	if v == nil {
		return expvar.NewMap(name) // Registers the new map
	}
	if mv, ok := v.(*expvar.Map); ok {
		return mv
	}
	panic(fmt.Sprintf("expvar: trying to publish Map %s but variable already exists with different type %T", name, v))
}
