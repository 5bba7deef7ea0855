// Package events carries profile updates from whoever edits the profile to the rescoring worker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/job-radar/internal/profile"
)

// ProfileUpdatedChannel is the pub/sub channel name for profile updates.
const ProfileUpdatedChannel = "EVENT_PROFILE_UPDATED"

// ErrClosed is returned when publishing to a closed bus.
var ErrClosed = errors.New("event bus is closed")

// ProfileUpdated is emitted every time the user changes the profile.
type ProfileUpdated struct {
	Type      string           `json:"type"`
	ProfileID string           `json:"profileId"`
	Profile   *profile.Profile `json:"profile"`
	At        time.Time        `json:"at"`
}

// NewProfileUpdated builds an event stamped with the current time.
func NewProfileUpdated(p *profile.Profile) ProfileUpdated {
	id := profile.DefaultID
	if p != nil && p.ID != "" {
		id = p.ID
	}
	return ProfileUpdated{Type: ProfileUpdatedChannel, ProfileID: id, Profile: p, At: time.Now().UTC()}
}

// Bus publishes and delivers ProfileUpdated events.
// Subscribe returns a channel that is closed when ctx is done or the bus is closed.
type Bus interface {
	PublishProfileUpdated(ctx context.Context, event ProfileUpdated) error
	SubscribeProfileUpdated(ctx context.Context) (<-chan ProfileUpdated, error)
	Close() error
}

func encode(event ProfileUpdated) ([]byte, error) {
	if event.Profile == nil {
		return nil, errors.New("profile is required")
	}
	if event.Type == "" {
		event.Type = ProfileUpdatedChannel
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ProfileUpdatedChannel, err)
	}
	return data, nil
}

func decode(payload []byte) (ProfileUpdated, error) {
	var event ProfileUpdated
	if err := json.Unmarshal(payload, &event); err != nil {
		return ProfileUpdated{}, fmt.Errorf("unmarshal %s: %w", ProfileUpdatedChannel, err)
	}
	if event.Profile == nil {
		return ProfileUpdated{}, errors.New("event carries no profile")
	}
	return event, nil
}
