// Package httputil holds the small set of response helpers shared by the
// API handlers so status codes and JSON encoding stay consistent.
package httputil
