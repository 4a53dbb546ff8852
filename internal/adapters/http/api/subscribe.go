package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/tarelay/internal/adapters/repository"
	"github.com/okian/tarelay/internal/domain/view"
	"github.com/okian/tarelay/pkg/logger"
)

// HandleSubscribe handles GET /subscribe. The state projection is sent once on
// connect and again after every change notification.
func (s *Server) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.log.Debug(r.Context(), "subscribe upgrade failed", logger.Error(err))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes, unsubscribe := s.subscriber.Subscribe(ctx)
	defer unsubscribe()

	// Drain client frames so close frames are processed.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.push(ctx, ws); err != nil {
		s.log.Debug(ctx, "subscriber write failed", logger.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := s.push(ctx, ws); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.log.Debug(ctx, "subscriber write failed", logger.Error(err))
				}
				return
			}
		}
	}
}

func (s *Server) push(ctx context.Context, ws *websocket.Conn) error {
	var out view.State
	if err := s.store.View(ctx, func(st *repository.State) error {
		out = view.Project(st)
		return nil
	}); err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(out)
}
