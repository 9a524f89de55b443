// Package broker is the fan-out fabric: named rooms of channels, plus
// direct channel sends. The memory implementation serves a single instance;
// Shared mirrors room membership into the shared cache so other instances
// can observe subscribers. Delivery is at-least-once within an instance and
// best-effort across instances. Events carry no sequence numbers; ordering
// comes from producers serializing their own emissions.
package broker

import (
	"time"

	"collabd/pkg/models"
)

// Subscriber receives frames for one channel. Implementations must not
// block for long; slow subscribers are dropped by the publish timeout.
type Subscriber interface {
	Deliver(f models.Frame) error
}

type Broker interface {
	// Register attaches a subscriber to a channel name; Unregister detaches
	// it and removes the channel from every room.
	Register(channel string, s Subscriber)
	Unregister(channel string)

	// GroupAdd and GroupDiscard maintain room membership; both are
	// idempotent.
	GroupAdd(room, channel string)
	GroupDiscard(room, channel string)

	// GroupSend delivers f once to every channel currently in room.
	GroupSend(room string, f models.Frame)
	// Send delivers f to a single channel.
	Send(channel string, f models.Frame)
}

// DefaultPublishTimeout is how long one delivery may take before the event
// is dropped for that channel and counted.
const DefaultPublishTimeout = 2 * time.Second
