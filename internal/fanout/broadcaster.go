package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kapu/arena-live-go/internal/leaderboard"
	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/kapu/arena-live-go/internal/registry"
	"github.com/kapu/arena-live-go/pkg/arenadto"
	"go.uber.org/zap"
)

// Broadcaster computes ranked snapshots and fans them out to live
// subscribers. Delivery is best-effort, at most once per push cycle;
// one subscriber's failure never blocks the others.
type Broadcaster struct {
	boards leaderboard.Repository
	reg    *registry.Registry
	dir    DirectoryCleanup
	pusher Pusher
	limit  int
}

func NewBroadcaster(boards leaderboard.Repository, reg *registry.Registry, dir DirectoryCleanup, pusher Pusher, limit int) *Broadcaster {
	if limit <= 0 {
		limit = 100
	}
	return &Broadcaster{boards: boards, reg: reg, dir: dir, pusher: pusher, limit: limit}
}

// Push delivers the live (all-time) top-N snapshot to every subscriber
// of the leaderboard. Zero subscribers is a no-op.
func (b *Broadcaster) Push(ctx context.Context, leaderboardID string) error {
	subs := b.reg.SubscribersOf(leaderboardID)
	if len(subs) == 0 {
		return nil
	}

	entries, err := b.boards.TopN(ctx, leaderboardID, leaderboard.TimeframeAll, b.limit)
	if err != nil {
		return fmt.Errorf("fanout snapshot: %w", err)
	}
	snap := leaderboard.BuildSnapshot(leaderboardID, leaderboard.TimeframeAll, entries)

	var wg sync.WaitGroup
	for _, connID := range subs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			b.deliver(ctx, id, leaderboardID, snap)
		}(connID)
	}
	wg.Wait()

	obslog.L().Debug("fanout_push",
		zap.String("leaderboard_id", leaderboardID),
		zap.Int("subscribers", len(subs)),
		zap.Int("entries", len(snap.Entries)))
	return nil
}

// RespondOnDemand pushes a snapshot for an arbitrary timeframe to exactly
// one connection, independent of subscription state.
func (b *Broadcaster) RespondOnDemand(ctx context.Context, connectionID, leaderboardID string, tf leaderboard.Timeframe) error {
	entries, err := b.boards.TopN(ctx, leaderboardID, tf, b.limit)
	if err != nil {
		return fmt.Errorf("on-demand snapshot: %w", err)
	}
	snap := leaderboard.BuildSnapshot(leaderboardID, tf, entries)
	if err := b.pusher.PushSnapshot(ctx, connectionID, snap); err != nil {
		if errors.Is(err, ErrConnectionGone) {
			b.prune(ctx, connectionID)
			return nil
		}
		return err
	}
	return nil
}

// deliver applies the per-subscriber failure policy: gone connections
// are pruned from registry and directory, everything else is logged and
// ignored.
func (b *Broadcaster) deliver(ctx context.Context, connectionID, leaderboardID string, snap *arenadto.Snapshot) {
	err := b.pusher.PushSnapshot(ctx, connectionID, snap)
	if err == nil {
		return
	}
	if errors.Is(err, ErrConnectionGone) {
		b.prune(ctx, connectionID)
		return
	}
	obslog.L().Warn("fanout_delivery_failed",
		zap.String("connection_id", connectionID),
		zap.String("leaderboard_id", leaderboardID),
		zap.Error(err))
}

func (b *Broadcaster) prune(ctx context.Context, connectionID string) {
	b.reg.DropConnection(connectionID)
	if b.dir != nil {
		if err := b.dir.RemoveConnection(ctx, connectionID); err != nil {
			obslog.L().Warn("gone_connection_cleanup_failed",
				zap.String("connection_id", connectionID), zap.Error(err))
			return
		}
	}
	obslog.L().Info("gone_connection_pruned", zap.String("connection_id", connectionID))
}
