// Package catalog loads permission and feature-flag definitions from YAML
// files. Files are validated on load; flag entries are superset-mergeable
// and upsert into a running evaluator by key.
package catalog
