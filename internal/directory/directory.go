package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnauthorizedConnection is returned when a connection id was never
// recorded (stale or forged). Callers must reject the operation without
// side effects.
var ErrUnauthorizedConnection = errors.New("unknown connection")

// ConnectionRecord is stored as JSON in Redis under conn:<id>.
type ConnectionRecord struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// Directory is the durable record of identity-per-connection and its
// subscribed leaderboard ids. Subscription math uses Redis SADD/SREM so
// concurrent updates from different connections never lose a member.
type Directory struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Directory{rdb: rdb, ttl: ttl}
}

func (d *Directory) keyConn(id string) string { return "conn:" + strings.TrimSpace(id) }
func (d *Directory) keySubs(id string) string { return d.keyConn(id) + ":subs" }
func (d *Directory) keyIndex() string         { return "conn:index" }

// RecordConnection creates the durable record for a freshly opened socket.
func (d *Directory) RecordConnection(ctx context.Context, connectionID, userID string) error {
	if strings.TrimSpace(connectionID) == "" || strings.TrimSpace(userID) == "" {
		return errors.New("connection id and user id are required")
	}
	rec := &ConnectionRecord{ConnectionID: connectionID, UserID: userID, ConnectedAt: time.Now().UTC()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := d.rdb.Set(ctx, d.keyConn(connectionID), raw, d.ttl).Err(); err != nil {
		return err
	}
	if err := d.rdb.SAdd(ctx, d.keyIndex(), connectionID).Err(); err != nil {
		return err
	}
	return d.rdb.Expire(ctx, d.keyIndex(), d.ttl).Err()
}

// ResolveUser returns the owning user id. This gate must run before any
// mutating ingestion operation on behalf of a connection. Successful
// resolution counts as activity and slides the record's TTL, so only
// abandoned connection ids ever expire.
func (d *Directory) ResolveUser(ctx context.Context, connectionID string) (string, error) {
	raw, err := d.rdb.Get(ctx, d.keyConn(connectionID)).Bytes()
	if err == redis.Nil {
		return "", ErrUnauthorizedConnection
	}
	if err != nil {
		return "", err
	}
	var rec ConnectionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", err
	}
	if rec.UserID == "" {
		return "", ErrUnauthorizedConnection
	}
	d.touch(ctx, connectionID)
	return rec.UserID, nil
}

// touch slides the TTL on the connection record and its subscription set.
// Best effort: a failed refresh only shortens the lease, never breaks the
// calling operation.
func (d *Directory) touch(ctx context.Context, connectionID string) {
	_ = d.rdb.Expire(ctx, d.keyConn(connectionID), d.ttl).Err()
	_ = d.rdb.Expire(ctx, d.keySubs(connectionID), d.ttl).Err()
}

// AddSubscription set-unions leaderboardID into the connection's durable
// subscription set.
func (d *Directory) AddSubscription(ctx context.Context, connectionID, leaderboardID string) error {
	if strings.TrimSpace(leaderboardID) == "" {
		return nil
	}
	exists, err := d.rdb.Exists(ctx, d.keyConn(connectionID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrUnauthorizedConnection
	}
	if err := d.rdb.SAdd(ctx, d.keySubs(connectionID), leaderboardID).Err(); err != nil {
		return err
	}
	d.touch(ctx, connectionID)
	return nil
}

// RemoveSubscription set-differences leaderboardID out of the set.
// Removing a non-member is a no-op.
func (d *Directory) RemoveSubscription(ctx context.Context, connectionID, leaderboardID string) error {
	return d.rdb.SRem(ctx, d.keySubs(connectionID), leaderboardID).Err()
}

// Subscriptions returns the durable subscription set for one connection.
func (d *Directory) Subscriptions(ctx context.Context, connectionID string) ([]string, error) {
	return d.rdb.SMembers(ctx, d.keySubs(connectionID)).Result()
}

// RemoveConnection deletes the record, its subscription set, and the
// index entry. Called on socket close and on gone-connection pruning.
func (d *Directory) RemoveConnection(ctx context.Context, connectionID string) error {
	if err := d.rdb.Del(ctx, d.keyConn(connectionID), d.keySubs(connectionID)).Err(); err != nil {
		return err
	}
	return d.rdb.SRem(ctx, d.keyIndex(), connectionID).Err()
}

// Snapshot returns connectionID -> subscribed leaderboard ids for every
// recorded connection, used to rebuild the in-memory registry at startup.
// Index entries whose record already expired are skipped.
func (d *Directory) Snapshot(ctx context.Context) (map[string][]string, error) {
	ids, err := d.rdb.SMembers(ctx, d.keyIndex()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(ids))
	for _, id := range ids {
		exists, err := d.rdb.Exists(ctx, d.keyConn(id)).Result()
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			_ = d.rdb.SRem(ctx, d.keyIndex(), id).Err()
			continue
		}
		subs, err := d.rdb.SMembers(ctx, d.keySubs(id)).Result()
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			continue
		}
		out[id] = subs
	}
	return out, nil
}
