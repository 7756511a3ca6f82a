// Package prometheus renders authgate metrics in Prometheus text format.
//
// Counter names are authgate_*_total. The verify-latency histogram is only
// rendered when latency histograms are enabled on the engine.
//
// # What this package must NOT do
//
//   - Register anything in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
