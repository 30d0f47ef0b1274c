// Package status serves the pipeline's operational endpoints: /healthz,
// /stats and the Prometheus /metrics scrape target.
package status
