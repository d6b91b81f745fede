// Package source adapts a tracking.Device into a demand-driven pipeline
// source.
//
// DeviceSource never polls. New data is produced only by GenerateData,
// which Pull calls when the cached outputs are marked dirty. Connection and
// tracking state are a direct projection of the wrapped device; lifecycle
// calls fail fast with typed errors and are never retried. Per-tool invalid
// readings are not errors and surface only as Datum.DataValid == false.
//
// DeviceSource is not safe for concurrent use. Drive it from a single
// goroutine, typically the pipeline runner.
package source
