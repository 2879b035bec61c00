package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/arena-live-go/internal/directory"
	"github.com/kapu/arena-live-go/internal/fanout"
	"github.com/kapu/arena-live-go/internal/ingest"
	"github.com/kapu/arena-live-go/internal/leaderboard"
	"github.com/kapu/arena-live-go/internal/obslog"
	"github.com/kapu/arena-live-go/internal/registry"
	"github.com/kapu/arena-live-go/pkg/arenadto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Server accepts realtime sockets and dispatches {action, data} frames.
// Each inbound frame is handled by its own short-lived goroutine.
type Server struct {
	pool        *Pool
	reg         *registry.Registry
	dir         *directory.Directory
	ingest      *ingest.Service
	broadcaster *fanout.Broadcaster

	frameTimeout time.Duration
}

func NewServer(pool *Pool, reg *registry.Registry, dir *directory.Directory, ing *ingest.Service, b *fanout.Broadcaster) *Server {
	return &Server{
		pool:         pool,
		reg:          reg,
		dir:          dir,
		ingest:       ing,
		broadcaster:  b,
		frameTimeout: 15 * time.Second,
	}
}

// ServeHTTP upgrades the request and runs the connection's read loop.
// Identity extraction is a black box upstream; here it is just the
// X-User-Id header (or user_id query parameter for browser clients).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if userID == "" {
		http.Error(w, `{"error":"missing user identity"}`, http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	ctx := r.Context()
	if err := s.dir.RecordConnection(ctx, connID, userID); err != nil {
		obslog.L().Error("connection_record_failed", zap.String("connection_id", connID), zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "connection registration failed")
		return
	}

	lc := &liveConn{id: connID, userID: userID, conn: conn}
	s.pool.add(lc)
	obslog.L().Info("connection_open",
		zap.String("connection_id", connID), zap.String("user_id", userID))

	defer func() {
		s.pool.remove(connID)
		s.reg.DropConnection(connID)
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.dir.RemoveConnection(cctx, connID); err != nil {
			obslog.L().Warn("connection_cleanup_failed", zap.String("connection_id", connID), zap.Error(err))
		}
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		obslog.L().Info("connection_close", zap.String("connection_id", connID))
	}()

	for {
		var env arenadto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		go s.handleFrame(connID, userID, env)
	}
}

func (s *Server) handleFrame(connID, userID string, env arenadto.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), s.frameTimeout)
	defer cancel()

	switch env.Action {
	case arenadto.ActionSubscribe:
		s.handleSubscribe(ctx, connID, env.Data)
	case arenadto.ActionUnsubscribe:
		s.handleUnsubscribe(ctx, connID, env.Data)
	case arenadto.ActionUpdateScore:
		s.handleUpdateScore(ctx, connID, env.Data)
	case arenadto.ActionGetBoard:
		s.handleGetBoard(ctx, connID, env.Data)
	default:
		s.writeError(ctx, connID, "unknown action")
	}
}

// handleSubscribe writes the durable subscription first, then the
// in-memory registry: registry membership stays a subset of the
// directory's record at all times.
func (s *Server) handleSubscribe(ctx context.Context, connID string, data json.RawMessage) {
	var d arenadto.SubscribeData
	if err := json.Unmarshal(data, &d); err != nil || strings.TrimSpace(d.GameID) == "" {
		s.writeError(ctx, connID, "gameId is required")
		return
	}
	if err := s.dir.AddSubscription(ctx, connID, d.GameID); err != nil {
		if errors.Is(err, directory.ErrUnauthorizedConnection) {
			s.writeError(ctx, connID, "unauthorized connection")
			return
		}
		obslog.L().Error("subscribe_failed", zap.String("connection_id", connID), zap.Error(err))
		s.writeError(ctx, connID, "subscription failed")
		return
	}
	s.reg.Subscribe(d.GameID, connID)
	obslog.L().Info("subscribe",
		zap.String("connection_id", connID), zap.String("leaderboard_id", d.GameID))

	// immediate snapshot so the client does not wait for the next update
	if err := s.broadcaster.RespondOnDemand(ctx, connID, d.GameID, leaderboard.TimeframeAll); err != nil {
		obslog.L().Warn("initial_snapshot_failed",
			zap.String("connection_id", connID), zap.String("leaderboard_id", d.GameID), zap.Error(err))
	}
}

func (s *Server) handleUnsubscribe(ctx context.Context, connID string, data json.RawMessage) {
	var d arenadto.SubscribeData
	if err := json.Unmarshal(data, &d); err != nil || strings.TrimSpace(d.GameID) == "" {
		s.writeError(ctx, connID, "gameId is required")
		return
	}
	s.reg.Unsubscribe(d.GameID, connID)
	if err := s.dir.RemoveSubscription(ctx, connID, d.GameID); err != nil {
		obslog.L().Warn("unsubscribe_cleanup_failed",
			zap.String("connection_id", connID), zap.String("leaderboard_id", d.GameID), zap.Error(err))
	}
	obslog.L().Info("unsubscribe",
		zap.String("connection_id", connID), zap.String("leaderboard_id", d.GameID))
}

func (s *Server) handleUpdateScore(ctx context.Context, connID string, data json.RawMessage) {
	var d arenadto.UpdateScoreData
	if err := json.Unmarshal(data, &d); err != nil || strings.TrimSpace(d.GameID) == "" || d.Score == nil {
		s.writeError(ctx, connID, "gameId and score are required")
		return
	}
	// auth gate before any mutating ingestion operation
	userID, err := s.dir.ResolveUser(ctx, connID)
	if err != nil {
		if errors.Is(err, directory.ErrUnauthorizedConnection) {
			s.writeError(ctx, connID, "unauthorized connection")
			return
		}
		obslog.L().Error("resolve_user_failed", zap.String("connection_id", connID), zap.Error(err))
		s.writeError(ctx, connID, "score submission failed")
		return
	}
	if err := s.ingest.Submit(ctx, userID, userID, d.GameID, *d.Score); err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidScore), errors.Is(err, ingest.ErrMissingField):
			s.writeError(ctx, connID, err.Error())
		default:
			obslog.L().Error("score_submit_failed",
				zap.String("connection_id", connID), zap.String("leaderboard_id", d.GameID), zap.Error(err))
			s.writeError(ctx, connID, "score submission failed")
		}
	}
}

func (s *Server) handleGetBoard(ctx context.Context, connID string, data json.RawMessage) {
	var d arenadto.GetBoardData
	if err := json.Unmarshal(data, &d); err != nil || strings.TrimSpace(d.GameID) == "" {
		s.writeError(ctx, connID, "gameId is required")
		return
	}
	tf, err := leaderboard.ParseTimeframe(d.Timeframe)
	if err != nil {
		s.writeError(ctx, connID, err.Error())
		return
	}
	if err := s.broadcaster.RespondOnDemand(ctx, connID, d.GameID, tf); err != nil {
		obslog.L().Warn("on_demand_snapshot_failed",
			zap.String("connection_id", connID), zap.String("leaderboard_id", d.GameID), zap.Error(err))
		s.writeError(ctx, connID, "leaderboard query failed")
	}
}

func (s *Server) writeError(ctx context.Context, connID, msg string) {
	if err := s.pool.writeJSON(ctx, connID, &arenadto.ErrorFrame{Error: msg}); err != nil {
		obslog.L().Debug("error_frame_dropped", zap.String("connection_id", connID), zap.Error(err))
	}
}
