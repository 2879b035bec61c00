package fanout

import (
	"context"
	"errors"

	"github.com/kapu/arena-live-go/pkg/arenadto"
)

// ErrConnectionGone classifies a delivery failure whose transport reports
// the connection no longer exists. It triggers self-healing cleanup and
// is never surfaced to clients. Transports wrap or return it directly.
var ErrConnectionGone = errors.New("connection gone")

// Pusher delivers one snapshot frame to one connection. Timeouts on the
// delivery attempt are the transport's responsibility; a timeout is an
// ordinary delivery failure, not a gone connection.
type Pusher interface {
	PushSnapshot(ctx context.Context, connectionID string, snap *arenadto.Snapshot) error
}

// DirectoryCleanup is the slice of the connection directory fanout needs
// to prune gone connections durably.
type DirectoryCleanup interface {
	RemoveConnection(ctx context.Context, connectionID string) error
}
