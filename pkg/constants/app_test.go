// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLFXAppDomain(t *testing.T) {
	tests := []struct {
		environment string
		expected    string
	}{
		{"dev", LFXDomainDev},
		{"staging", LFXDomainStaging},
		{"prod", LFXDomainProd},
		{"", LFXDomainProd},
		{"qa", LFXDomainProd},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetLFXAppDomain(tt.environment))
		})
	}
}

func TestLfxURLGenerator(t *testing.T) {
	dev := NewLfxURLGenerator("dev", "")
	assert.Equal(t, "https://app.dev.lfx.dev/meetings/m-1", dev.GenerateMeetingURL("m-1"))
	assert.Equal(t, "https://app.dev.lfx.dev/meetings/m-1/join", dev.GenerateJoinURL("m-1"))

	custom := NewLfxURLGenerator("dev", "http://localhost:4200/")
	assert.Equal(t, "http://localhost:4200/meetings/m-1", custom.GenerateMeetingURL("m-1"))

	var unset *LfxURLGenerator
	assert.Equal(t, "https://app.lfx.dev/meetings/m-1", unset.GenerateMeetingURL("m-1"))
}
