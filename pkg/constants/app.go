// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import (
	"fmt"
	"strings"
)

// LFX app domain constants
const (
	// LFXDomainDev is the development domain
	LFXDomainDev = "app.dev.lfx.dev"
	// LFXDomainStaging is the staging domain
	LFXDomainStaging = "app.staging.lfx.dev"
	// LFXDomainProd is the production domain
	LFXDomainProd = "app.lfx.dev"
)

// GetLFXAppDomain returns the appropriate LFX app domain based on the environment
// Environment should be one of: "dev", "staging", "prod"
func GetLFXAppDomain(environment string) string {
	switch environment {
	case "dev":
		return LFXDomainDev
	case "staging":
		return LFXDomainStaging
	default:
		return LFXDomainProd
	}
}

// LfxURLGenerator builds links into the LFX app that notifications and calendar
// invites point at.
type LfxURLGenerator struct {
	environment     string
	customAppOrigin string
}

// NewLfxURLGenerator creates a new LfxURLGenerator with the given environment and optional custom app origin
func NewLfxURLGenerator(environment, customAppOrigin string) *LfxURLGenerator {
	return &LfxURLGenerator{
		environment:     environment,
		customAppOrigin: strings.TrimSuffix(customAppOrigin, "/"),
	}
}

func (g *LfxURLGenerator) origin() string {
	if g == nil {
		return "https://" + LFXDomainProd
	}
	if g.customAppOrigin != "" {
		return g.customAppOrigin
	}
	return "https://" + GetLFXAppDomain(g.environment)
}

// GenerateMeetingURL returns the app page of a scheduled meeting.
func (g *LfxURLGenerator) GenerateMeetingURL(meetingUID string) string {
	return fmt.Sprintf("%s/meetings/%s", g.origin(), meetingUID)
}

// GenerateJoinURL returns the app page that admits a participant to the meeting room.
func (g *LfxURLGenerator) GenerateJoinURL(meetingUID string) string {
	return fmt.Sprintf("%s/meetings/%s/join", g.origin(), meetingUID)
}
