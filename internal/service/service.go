// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/timeslot"
)

type Service interface {
	ServiceReady() bool
}

// DefaultUpdateTries bounds optimistic read-modify-write attempts on a meeting.
const DefaultUpdateTries = 3

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// StrictConflicts also checks the requester's own calendar on create and
	// reschedule, not only the requestees'.
	StrictConflicts bool
	// BusinessHours is the daily window availability is computed over.
	BusinessHours timeslot.BusinessHours
	// LFXEnvironment is the environment name for LFX app domain generation.
	LFXEnvironment string
	// LFXAppOrigin overrides the app origin derived from LFXEnvironment.
	LFXAppOrigin string
	// UpdateTries bounds retries of a write that lost a revision race.
	UpdateTries uint
	// ConflictRetryInterval is the first delay between those retries.
	ConflictRetryInterval time.Duration
}

// DefaultServiceConfig returns the production configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		StrictConflicts:       true,
		BusinessHours:         timeslot.DefaultBusinessHours(),
		UpdateTries:           DefaultUpdateTries,
		ConflictRetryInterval: 50 * time.Millisecond,
	}
}

// URLs returns the generator for links into the LFX app.
func (c ServiceConfig) URLs() *constants.LfxURLGenerator {
	return constants.NewLfxURLGenerator(c.LFXEnvironment, c.LFXAppOrigin)
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	defaults := DefaultServiceConfig()
	if c.BusinessHours == (timeslot.BusinessHours{}) {
		c.BusinessHours = defaults.BusinessHours
	}
	if c.UpdateTries == 0 {
		c.UpdateTries = defaults.UpdateTries
	}
	if c.ConflictRetryInterval <= 0 {
		c.ConflictRetryInterval = defaults.ConflictRetryInterval
	}
	return c
}

// retryOnConflict runs op until it succeeds, fails with anything other than a
// revision mismatch, or runs out of tries.
func retryOnConflict[T any](ctx context.Context, config ServiceConfig, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.ConflictRetryInterval
	b.MaxInterval = 20 * config.ConflictRetryInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, domain.ErrRevisionMismatch) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(config.UpdateTries))
}

// meetingChange edits a freshly loaded meeting in place and reports whether it
// changed anything worth writing.
type meetingChange func(meeting *models.Meeting) (bool, error)

// mutateMeeting loads the meeting, applies change and writes it back under the
// loaded revision. A lost race reloads and reapplies.
func mutateMeeting(
	ctx context.Context,
	repo domain.MeetingRepository,
	config ServiceConfig,
	now func() time.Time,
	meetingUID string,
	change meetingChange,
) (*models.Meeting, bool, error) {
	type outcome struct {
		meeting *models.Meeting
		changed bool
	}

	out, err := retryOnConflict(ctx, config, func() (outcome, error) {
		meeting, revision, err := repo.GetWithRevision(ctx, meetingUID)
		if err != nil {
			return outcome{}, err
		}
		changed, err := change(meeting)
		if err != nil || !changed {
			return outcome{meeting: meeting}, err
		}
		updatedAt := now().UTC()
		meeting.UpdatedAt = &updatedAt
		if err := repo.Update(ctx, meeting, revision); err != nil {
			return outcome{}, err
		}
		return outcome{meeting: meeting, changed: true}, nil
	})
	return out.meeting, out.changed, err
}
