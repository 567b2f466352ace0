package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koios/octodash/internal/octoprint"
	"github.com/koios/octodash/internal/settings"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is how often each connection polls OctoPrint
const DefaultPollInterval = 2 * time.Second

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4096
)

// StatusFeed serves /ws. Every connection owns its own ticker and polls
// OctoPrint independently; there is no shared fetch across connections.
type StatusFeed struct {
	settings *settings.Manager
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusFeed creates a feed polling every interval
func NewStatusFeed(manager *settings.Manager, interval time.Duration, logger *zap.Logger) *StatusFeed {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &StatusFeed{
		settings: manager,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ServeHTTP upgrades the request and runs the poll loop until the client goes away
func (f *StatusFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	logger := f.logger.With(zap.String("conn_id", id), zap.String("remote_addr", r.RemoteAddr))
	logger.Info("WebSocket client connected")

	ctx, cancel := context.WithCancel(f.ctx)

	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.readLoop(conn, cancel)
	}()
	go func() {
		defer f.wg.Done()
		f.pollLoop(ctx, cancel, conn, logger)
		logger.Info("WebSocket client disconnected")
	}()
}

// Close stops every connection and waits for their loops to exit
func (f *StatusFeed) Close() {
	f.cancel()
	f.wg.Wait()
}

// readLoop drains client frames so close frames are seen; the feed is push only
func (f *StatusFeed) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pollLoop pushes one snapshot immediately and then one per tick
func (f *StatusFeed) pollLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, logger *zap.Logger) {
	defer conn.Close()
	defer cancel()

	if err := f.push(ctx, conn, logger); err != nil {
		return
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if f.ctx.Err() != nil {
				// server shutdown, tell the client
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(time.Second))
			}
			return
		case <-ticker.C:
			if err := f.push(ctx, conn, logger); err != nil {
				return
			}
		}
	}
}

// push fetches a snapshot and writes it. Upstream failures skip the tick;
// only a failed write is returned.
func (f *StatusFeed) push(ctx context.Context, conn *websocket.Conn, logger *zap.Logger) error {
	client, err := f.settings.Client()
	if err != nil {
		return nil
	}

	update, err := Snapshot(ctx, client)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("Error fetching printer data",
				zap.String("kind", octoprint.KindOf(err).String()),
				zap.Error(err))
		}
		return nil
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(update); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			logger.Debug("WebSocket write failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// Snapshot fetches printer status and job concurrently and wraps them in an update envelope
func Snapshot(ctx context.Context, client *octoprint.Client) (*models.Update, error) {
	var (
		status *models.PrinterStatus
		job    *models.JobInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = client.GetPrinterStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		job, err = client.GetJob(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return models.NewUpdate(status, job), nil
}
