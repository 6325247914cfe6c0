// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Constants for message headers
const (
	// RequestIDHeader is the NATS header carrying the caller's correlation ID
	RequestIDHeader string = "X-REQUEST-ID"
)

// contextRequestID is the type for the request ID context key
type contextRequestID string

// RequestIDContextID is the context ID for the request ID
const RequestIDContextID contextRequestID = "X-REQUEST-ID"
