// Command harvester collects article records from a publisher's sitemap archive.
//
// Architecture overview:
//   - CLI: cmd builds the App from Viper config (file plus HARVESTER_* env) and runs one harvest per invocation.
//   - Fetch pool: a fixed set of workers pulls sitemap and article tasks from one unbounded in-memory queue, so at
//     most harvest.concurrency requests are in flight. Each fetch waits on a shared per-host politeness limiter and
//     retries timeouts, network errors and 5xx responses with capped exponential backoff.
//   - Pipeline: sitemaps are parsed for <loc> entries, every normalized URL is admitted once by the dedup store, media
//     URLs are skipped, and fetched articles go through the CSS selector extractor. Every admitted URL yields exactly
//     one record, emitted to the configured sink (memory, jsonl, postgres, mongo, pubsub or gcs).
//   - Observability: zap logs carry run IDs and URLs; Prometheus collectors, health probes and live run status are
//     served on metrics.addr; OpenTelemetry spans wrap the run and each fetch when tracing is enabled.
//
// Quick checklist:
//   - List the sitemaps a run would use: harvester sitemaps --config config.yaml
//   - Harvest: harvester run --config config.yaml; the run summary is printed as JSON on stdout.
//   - SIGINT/SIGTERM stop admission of new articles; already admitted work still ends in a record.
package main

import (
	"github.com/JakeFAU/sitemap-article-harvester/cmd"
)

func main() {
	cmd.Execute()
}
