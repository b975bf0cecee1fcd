package services

import (
	"context"

	"openmm_server/models"
)

// Capabilities answers permission questions about a participant.
type Capabilities interface {
	HasHostingCapability(ctx context.Context, community, participant string) bool
	HasModerationCapability(ctx context.Context, community, participant string) bool
}

// Rooms manages the voice rooms of a match.
type Rooms interface {
	OpenSideRoom(ctx context.Context, community string, spec models.RoomSpec) (models.RoomHandle, error)
	CloseRoom(ctx context.Context, community string, room models.RoomHandle) error
	SetRoomAccess(ctx context.Context, community string, room models.RoomHandle, participant string, allowed bool) error
	MoveParticipant(ctx context.Context, community, participant string, destination models.RoomHandle) error
}

// Notifier delivers messages to participants.
type Notifier interface {
	NotifyParticipant(ctx context.Context, community, participant string, n models.Notification) error
}

// SuspensionEffects is the platform side of a suspension (a role, a mute, ...).
type SuspensionEffects interface {
	ApplySuspension(ctx context.Context, community, participant string) error
	LiftSuspension(ctx context.Context, community, participant string) error
	HasSuspension(ctx context.Context, community, participant string) (bool, error)
}

// Platform is everything the engine needs from the hosting platform.
type Platform interface {
	Capabilities
	Rooms
	Notifier
	SuspensionEffects
}
