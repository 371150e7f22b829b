// Package observability builds the zap loggers shared by both services and
// the request logging middleware mounted in front of every router.
package observability
