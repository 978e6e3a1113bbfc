package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"quad/cmd/internal/auth/session"
	"quad/cmd/internal/directory"
	"quad/cmd/internal/media"
	v1 "quad/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	wsSubprotocolV1 = "quad.chat.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsDefaultHistoryLimit = 50
	wsMaxHistoryLimit     = 200

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// WSGateway is the WebSocket entrypoint for Quad chat.
//
// It enforces credential auth at upgrade, origin policy, subprotocol
// selection, rate limits, heartbeats, and routes validated envelopes to the
// Hub and the chat Pipeline.
type WSGateway struct {
	log        *slog.Logger
	hub        *Hub
	store      MessageStore
	pipeline   *Pipeline
	sessions   session.Issuer
	identities directory.Store

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// NewWSGateway constructs a gateway with secure defaults.
func NewWSGateway(
	log *slog.Logger,
	hub *Hub,
	store MessageStore,
	pipeline *Pipeline,
	sessions session.Issuer,
	identities directory.Store,
) (*WSGateway, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if hub == nil {
		hub = NewHub(log)
	}
	if store == nil || pipeline == nil {
		return nil, errors.New("chat: nil store or pipeline")
	}
	if sessions == nil {
		return nil, errors.New("chat: nil session issuer")
	}
	if identities == nil {
		return nil, errors.New("chat: nil identity store")
	}

	g := &WSGateway{
		log:        log,
		hub:        hub,
		store:      store,
		pipeline:   pipeline,
		sessions:   sessions,
		identities: identities,
	}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is not an origin policy.
	g.devInsecure = envBoolWS("QUAD_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("QUAD_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("QUAD_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy:
	// - same-host is ok
	// - cross-origin requires OriginPatterns (host patterns)
	// We derive these patterns from allowed origins so the two layers agree.
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("QUAD_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("QUAD_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("QUAD_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("QUAD_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("QUAD_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("QUAD_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("QUAD_WS_RATE_WINDOW", rateLimitWindow)

	return g, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the chat loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// Credential gate before the upgrade: every chat-room join requires an
	// authenticated connection. Author fields on messages come from these
	// claims, never from the client.
	claims, err := g.authenticate(r)
	if err != nil {
		g.log.Info("ws.reject.credential", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ident, err := g.identities.GetByStableID(r.Context(), claims.StableID)
	if err != nil {
		g.log.Info("ws.reject.unknown_identity", "stable_id", claims.StableID)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{wsSubprotocolV1},

		// Authorize allowed origin hosts (e.g. localhost) for cross-origin requests.
		OriginPatterns: g.originPatterns,

		// Dev-only escape hatch.
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	connectionID := NewRandomHex(10)
	client := NewClient(connectionID, ident.StableID, ident.DisplayAlias, g.sendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		closeOnce sync.Once

		joinedMu sync.Mutex
		joined   = make(map[string]*Room)
	)

	leaveAll := func() {
		joinedMu.Lock()
		rooms := make([]*Room, 0, len(joined))
		for _, room := range joined {
			rooms = append(rooms, room)
		}
		joined = make(map[string]*Room)
		joinedMu.Unlock()

		for _, room := range rooms {
			room.Leave(connectionID)
		}
	}

	// shutdown is idempotent. It does NOT close client.Send.
	// Broadcast safety: client.Send remains open and membership removal happens before client.Close.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			leaveAll()
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "connection_id", connectionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "connection_id", connectionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	// Chat sends run in their own goroutines (uploads may be slow and must
	// not block other messages). Track them so shutdown is orderly.
	var sendsWG sync.WaitGroup

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "connection_id", connectionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.trySendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeHello:
			if err := g.onHello(ctx, client, env); err != nil {
				g.trySendError(ctx, client, "hello_failed", err.Error())
				shutdown(websocket.StatusPolicyViolation, "hello failed")
				break readLoop
			}

		case v1.TypeRoomJoin:
			room, err := g.onJoin(ctx, client, env)
			if err != nil {
				g.trySendError(ctx, client, "join_failed", err.Error())
				continue readLoop
			}
			joinedMu.Lock()
			joined[room.ID] = room
			joinedMu.Unlock()

		case v1.TypeRoomLeave:
			roomID, err := decodeRoomLeave(env)
			if err != nil {
				g.trySendError(ctx, client, "leave_failed", err.Error())
				continue readLoop
			}
			joinedMu.Lock()
			room := joined[roomID]
			delete(joined, roomID)
			joinedMu.Unlock()
			if room != nil {
				room.Leave(connectionID)
			}

		case v1.TypeChatSend:
			roomOf := func(id string) *Room {
				joinedMu.Lock()
				defer joinedMu.Unlock()
				return joined[id]
			}

			in, room, err := g.decodeChatSend(env, roomOf)
			if err != nil {
				g.trySendError(ctx, client, "send_failed", err.Error())
				continue readLoop
			}

			sendsWG.Add(1)
			go func() {
				defer sendsWG.Done()
				g.runSend(ctx, client, room, in, now)
			}()

		case v1.TypeHistoryFetch:
			if err := g.onHistoryFetch(ctx, client, env, func(id string) bool {
				joinedMu.Lock()
				defer joinedMu.Unlock()
				_, ok := joined[id]
				return ok
			}); err != nil {
				g.trySendError(ctx, client, "history_failed", err.Error())
				continue readLoop
			}

		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	sendsWG.Wait()
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- auth ----

// authenticate resolves the session credential from the upgrade request:
// Authorization header first, then ?token= for browser clients that cannot
// set websocket headers.
func (g *WSGateway) authenticate(r *http.Request) (session.Claims, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(raw, prefix) {
			return session.Claims{}, session.ErrInvalidToken
		}
		raw = strings.TrimSpace(strings.TrimPrefix(raw, prefix))
	} else {
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if raw == "" {
		return session.Claims{}, session.ErrInvalidToken
	}
	return g.sessions.Verify(raw, time.Now().UTC())
}

// ---- handlers ----

func (g *WSGateway) onHello(ctx context.Context, client *Client, env v1.Envelope) error {
	var p v1.HelloPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	ackPayload, _ := json.Marshal(v1.HelloAckPayload{
		ConnectionID: client.ConnectionID,
		StableID:     client.StableID,
		Alias:        client.Alias,
	})
	ack := NewEnvelope(v1.TypeHelloAck, ackPayload, time.Now().UTC())

	if !g.enqueue(ctx, client, ack) {
		return errors.New("backpressure: hello_ack")
	}
	return nil
}

func (g *WSGateway) onJoin(ctx context.Context, client *Client, env v1.Envelope) (*Room, error) {
	var p v1.RoomJoinPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		return nil, errors.New("missing room_id")
	}

	room := g.hub.GetOrCreateRoom(roomID)
	room.Join(client)

	// No explicit ack: the join echo doubles as confirmation that the
	// server began routing broadcasts.
	echoPayload, _ := json.Marshal(v1.RoomJoinPayload{RoomID: room.ID})
	echo := NewEnvelope(v1.TypeRoomJoin, echoPayload, time.Now().UTC())

	if !g.enqueue(ctx, client, echo) {
		room.Leave(client.ConnectionID)
		return nil, errors.New("backpressure: join echo")
	}

	return room, nil
}

func decodeRoomLeave(env v1.Envelope) (string, error) {
	var p v1.RoomLeavePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}
	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		return "", errors.New("missing room_id")
	}
	return roomID, nil
}

// decodeChatSend validates the send payload and resolves inline images.
func (g *WSGateway) decodeChatSend(env v1.Envelope, roomOf func(string) *Room) (SendInput, *Room, error) {
	var p v1.ChatSendPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return SendInput{}, nil, fmt.Errorf("invalid payload: %w", err)
	}

	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		return SendInput{}, nil, errors.New("missing room_id")
	}
	room := roomOf(roomID)
	if room == nil {
		return SendInput{}, nil, errors.New("not joined: join first")
	}

	if strings.TrimSpace(p.ClientMsgID) == "" {
		return SendInput{}, nil, errors.New("missing client_msg_id")
	}

	text := strings.TrimSpace(p.Text)
	if text == "" && len(p.Images) == 0 {
		return SendInput{}, nil, errors.New("empty message")
	}
	if len([]rune(text)) > maxMessageChars {
		return SendInput{}, nil, fmt.Errorf("message too long: max=%d chars", maxMessageChars)
	}

	if len(p.Images) > maxImagesPerMessage {
		return SendInput{}, nil, fmt.Errorf("too many images: max=%d", maxImagesPerMessage)
	}
	images, err := decodeImages(p.Images)
	if err != nil {
		return SendInput{}, nil, err
	}

	return SendInput{
		Room:        room,
		ClientMsgID: p.ClientMsgID,
		Text:        text,
		Images:      images,
	}, room, nil
}

// runSend drives the pipeline for one chat event and reports failures to the
// sending connection only.
//
// The pipeline runs detached from the connection context: once a send is
// accepted, a sender disconnect must not abort the upload or the persist.
// The message either fails on its own or becomes visible to the whole room;
// only the error-envelope path stays best-effort.
func (g *WSGateway) runSend(ctx context.Context, client *Client, room *Room, in SendInput, now time.Time) {
	ctx = context.WithoutCancel(ctx)

	in.AuthorID = client.StableID
	in.AuthorAlias = client.Alias
	in.Now = now

	_, err := g.pipeline.Send(ctx, in)
	if err == nil {
		return
	}

	code := "send_failed"
	if errors.Is(err, ErrUploadFailed) {
		code = "upload_failed"
	}
	g.log.Info("ws.send.fail", "connection_id", client.ConnectionID, "room_id", room.ID, "code", code, "err", err)
	g.trySendError(ctx, client, code, "message not delivered")
}

func (g *WSGateway) onHistoryFetch(ctx context.Context, client *Client, env v1.Envelope, isJoined func(string) bool) error {
	var p v1.HistoryFetchPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		return errors.New("missing room_id")
	}
	if !isJoined(roomID) {
		return errors.New("not joined: join first")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = wsDefaultHistoryLimit
	}
	if limit > wsMaxHistoryLimit {
		limit = wsMaxHistoryLimit
	}

	out, err := g.store.FetchHistory(ctx, FetchHistoryInput{
		RoomID:   roomID,
		AfterSeq: p.AfterSeq,
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	msgs := make([]v1.MessageNewPayload, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, messageNewPayload(m))
	}

	chunkPayload, _ := json.Marshal(v1.HistoryChunkPayload{
		RoomID:   roomID,
		Messages: msgs,
		HasMore:  out.HasMore,
	})
	chunk := NewEnvelope(v1.TypeHistoryChunk, chunkPayload, time.Now().UTC())

	if !g.enqueue(ctx, client, chunk) {
		return errors.New("backpressure: history chunk")
	}
	return nil
}

// ---- send helpers ----

func (g *WSGateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	env := NewEnvelope(v1.TypeError, p, time.Now().UTC())
	_ = g.enqueue(ctx, client, env)
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

// ---- image decoding ----

func decodeImages(encoded []string) ([]media.Image, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	out := make([]media.Image, 0, len(encoded))
	for i, s := range encoded {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("image %d: invalid base64", i)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image %d: empty payload", i)
		}
		if len(data) > maxImageBytes {
			return nil, fmt.Errorf("image %d: too large: max=%d bytes", i, maxImageBytes)
		}
		out = append(out, media.Image{Data: data})
	}
	return out, nil
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors are typically returned by json.Unmarshal, not conn.Read.
	// This fallback exists for robustness when error strings are propagated.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using filepath.Match patterns.
	// We keep this strict: only hosts extracted from allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
