// Package adapter turns external scan output into normalized records.
//
// NmapScanner shells out to nmap and converts live-host results into
// host and port records. ParseRecordsFile reads record drop files in
// JSON or YAML form, used by the directory watcher for offline ingest.
//
// Adapters only produce records; matching and persistence belong to the
// import service.
package adapter
