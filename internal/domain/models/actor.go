// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// Actor is the caller of a scheduling operation, supplied and verified upstream.
type Actor struct {
	UserID   string          `json:"user_id"`
	TenantID string          `json:"tenant_id"`
	Role     ParticipantRole `json:"role,omitempty"`
}
