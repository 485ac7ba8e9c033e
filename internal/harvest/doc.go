// Package harvest defines the core types, errors, and interfaces shared by the
// sitemap harvesting pipeline: fetch pool, sitemap parser, dedup store,
// classifier, extractor, orchestrator, and result sinks.
package harvest
