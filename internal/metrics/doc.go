// Package metrics provides observability hooks for publication runs and the job queue.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	type Orchestrator struct {
//	    recorder metrics.Recorder
//	}
//
//	func (o *Orchestrator) SetRecorder(r metrics.Recorder) {
//	    if r == nil {
//	        r = metrics.NoopRecorder{}
//	    }
//	    o.recorder = r
//	}
//
// PrometheusRecorder registers its collectors on the registry it is given (a fresh
// registry when nil), and HTTPHandler exposes that registry for scraping. Label
// cardinality is kept bounded: page outcomes and job types are small enums, and
// references are never used as label values.
package metrics
