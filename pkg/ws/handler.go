package ws

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"collabd/pkg/auth"
	"collabd/pkg/broker"
	"collabd/pkg/chat"
	"collabd/pkg/logger"
	"collabd/pkg/models"
	"collabd/pkg/presence"
	"collabd/pkg/rooms"
	"collabd/pkg/store"
	"collabd/pkg/telemetry"
)

// Options tunes the transport; zero values take the documented defaults.
type Options struct {
	OutboundQueue  int
	PingPeriod     time.Duration
	IdleTimeout    time.Duration
	HandshakeWait  time.Duration
	RateRPS        float64
	RateBurst      int
}

func (o *Options) defaults() {
	if o.OutboundQueue <= 0 {
		o.OutboundQueue = 256
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 90 * time.Second
	}
	if o.HandshakeWait <= 0 {
		o.HandshakeWait = 5 * time.Second
	}
}

// Handler serves the chat and kanban sockets. Connect wiring: authenticate,
// bind presence (superseding any stale connection), subscribe entitled
// rooms, then pump frames until disconnect.
type Handler struct {
	gateway  *auth.Gateway
	store    store.Store
	presence *presence.Registry
	broker   broker.Broker
	router   *rooms.Router
	dispatch *chat.Dispatcher
	limits   *auth.LimiterPool
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(gw *auth.Gateway, st store.Store, pr *presence.Registry, b broker.Broker, d *chat.Dispatcher, opts Options) *Handler {
	opts.defaults()
	return &Handler{
		gateway:  gw,
		store:    st,
		presence: pr,
		broker:   b,
		router:   rooms.NewRouter(b),
		dispatch: d,
		limits:   auth.NewLimiterPool(opts.RateRPS, opts.RateBurst),
		opts:     opts,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: opts.HandshakeWait,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// Chat serves /ws/chat/: full event dispatch.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

// Kanban serves /ws/kanban/: broadcast-only, inbound frames are discarded.
func (h *Handler) Kanban(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, dispatchInbound bool) {
	user, authErr := h.gateway.Authenticate(r)

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("upgrade_failed", "error", err)
		return
	}
	if authErr != nil {
		// policy violation; no reconnect hint
		msg := websocket.FormatCloseMessage(CloseUnauthenticated, "unauthenticated")
		_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
		_ = sock.WriteMessage(websocket.CloseMessage, msg)
		_ = sock.Close()
		return
	}

	channel := fmt.Sprintf("chan.%d.%d", user.ID, time.Now().UnixNano())
	conn := newConn(sock, user.ID, channel, h.opts.OutboundQueue, h.opts.PingPeriod, h.opts.IdleTimeout)
	go conn.writePump()

	telemetry.ConnectionsOpened.Inc()
	telemetry.OpenConnections.Inc()
	logger.Info("connection_opened", "user", user.ID, "channel", channel)

	prev, err := h.presence.Bind(user.ID, channel)
	if err != nil {
		logger.Error("presence_bind_failed", "user", user.ID, "error", err)
	}
	if prev != "" && prev != channel {
		// a new connection supersedes the previous one
		h.broker.Unregister(prev)
	}
	if err := h.presence.SetOnline(user.ID); err != nil {
		logger.Error("set_online_failed", "user", user.ID, "error", err)
	}

	entitled, err := rooms.Entitled(r.Context(), h.store, user.ID)
	if err != nil {
		logger.Error("room_entitlement_failed", "user", user.ID, "error", err)
		entitled = []string{rooms.General}
	}
	h.router.Subscribe(channel, entitled)
	h.broker.Register(channel, conn)

	h.readLoop(r, conn, chat.Sender{UserID: user.ID, Channel: channel}, dispatchInbound)

	h.broker.Unregister(channel)
	h.limits.Forget(channel)
	if err := h.presence.Unbind(user.ID, channel); err != nil {
		logger.Error("presence_unbind_failed", "user", user.ID, "error", err)
	}
	if _, bound, _ := h.presence.Lookup(user.ID); !bound {
		// last connection gone; the user goes dark
		_ = h.presence.SetOffline(user.ID)
		h.broker.GroupSend(rooms.General, models.Frame{
			Type:    models.EventSetOffline,
			Content: map[string]int64{"user_id": user.ID},
		})
	}
	conn.close(websocket.CloseNormalClosure, "")
	telemetry.ConnectionsClosed.Inc()
	telemetry.OpenConnections.Dec()
	logger.Info("connection_closed", "user", user.ID, "channel", channel)
}

func (h *Handler) readLoop(r *http.Request, conn *Conn, sender chat.Sender, dispatchInbound bool) {
	sock := conn.sock
	_ = sock.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))
	})

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			logger.Debug("read_loop_ended", "channel", sender.Channel, "error", err)
			return
		}
		_ = sock.SetReadDeadline(time.Now().Add(h.opts.IdleTimeout))
		telemetry.FramesIn.Inc()

		if !h.limits.Allow(sender.Channel) {
			telemetry.RateLimited.Inc()
			continue
		}
		if !dispatchInbound {
			continue
		}

		if err := h.dispatch.Dispatch(r.Context(), sender, raw); err != nil {
			var de *chat.DomainError
			switch {
			case errors.As(err, &de):
				conn.DeliverError(de.Error())
			case errors.Is(err, chat.ErrUnknownEventType):
				conn.close(CloseUnknownEvent, "unknown event type")
				return
			default:
				logger.Error("dispatch_failed", "channel", sender.Channel, "error", err)
				conn.DeliverError("internal error")
			}
		}
	}
}
