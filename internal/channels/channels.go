// Package channels defines the messaging-surface boundary: adapters
// produce inbound ChannelMessages and deliver assistant output back to
// the sender.
package channels

import (
	"context"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Adapter is one messaging surface (telegram, console, ...). Adapters
// normalize platform messages into ChannelMessages and send assistant
// text back out.
type Adapter interface {
	// Type identifies the surface.
	Type() models.ChannelType

	// Start establishes the connection and begins producing messages.
	Start(ctx context.Context) error

	// Stop shuts the adapter down; Messages closes once drained.
	Stop(ctx context.Context) error

	// Messages is the inbound stream. Closed when the adapter stops.
	Messages() <-chan models.ChannelMessage

	// Send delivers assistant text to a sender on this surface.
	Send(ctx context.Context, recipient, text string) error
}

// Status reports an adapter's connection state.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}
