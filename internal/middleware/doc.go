// Package middleware provides HTTP middleware for the openroom service.
//
// It includes:
//   - Access logging, with the asset, cache tier and grading path of render requests
//   - Prometheus request metrics labelled by route template
package middleware
