// Package redis provides Redis-backed implementations of ports.ExportStore and
// ports.DistributedLocker, for sharing cases across server replicas.
package redis
