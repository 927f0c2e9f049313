// Package breach defines the core types shared across the collector, the
// ingest pipeline, the stores and the HTTP API.
//
// A Breach is one row of the HHS Office for Civil Rights breach portal report.
// The portal splits incidents into two categories: cases currently under
// investigation, and the archive (incidents older than 24 months or resolved).
package breach
