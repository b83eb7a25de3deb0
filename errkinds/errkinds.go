// Package errkinds declares the error classes used across lors.
//
// Each class corresponds to one of the error kinds in the transfer
// pipeline's error handling design: callers distinguish them with
// errs.Is / errors.As against the class rather than matching strings.
package errkinds

import "github.com/zeebo/errs"

// MalformedAllocation indicates a received allocation could not be parsed.
// Fatal for that allocation; the caller should log and move on.
var MalformedAllocation = errs.Class("malformed allocation")

// UnknownBackend indicates no driver is registered for a schema or depot kind.
var UnknownBackend = errs.Class("unknown backend")

// AllocationError indicates a transient backend failure during
// make/read/copy. Callers re-queue the job up to a retry bound.
var AllocationError = errs.Class("allocation error")

// FatalBackendError indicates a non-retryable backend failure.
var FatalBackendError = errs.Class("fatal backend error")

// NoCandidate indicates a schedule has no choice left for a request.
var NoCandidate = errs.Class("no candidate")

// InsufficientDepots indicates fewer enabled depots than requested replicas.
var InsufficientDepots = errs.Class("insufficient depots")

// RegistryError indicates the metadata registry rejected or could not
// service a call. Fatal for the enclosing transfer.
var RegistryError = errs.Class("registry error")

// SessionClosed indicates a transfer was requested after Session.Close
// began draining in-flight work; the caller must start a new Session.
var SessionClosed = errs.Class("session closed")
