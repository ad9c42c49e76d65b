package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"marblemech/internal/protocol"
	"marblemech/internal/sim/rig"
)

// Server is the HUD/input boundary: one websocket carries LAUNCH actions in
// and per-tick FRAME snapshots out. Sessions are passive observers of a
// single rig; closing the socket is the quit signal.
type Server struct {
	rig *rig.Rig
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(r *rig.Rig, logger *log.Logger) *Server {
	return &Server{
		rig: r,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out := s.handshake(conn)
		if sid == "" {
			return
		}

		select {
		case s.rig.ObserverJoin() <- rig.ObserverJoinRequest{SessionID: sid, Out: out}:
		default:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, protocol.ErrRigBusy), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.rig.ObserverLeave() <- sid:
			default:
				// Rig loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: streams frames until the session channel closes.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: only LAUNCH is meaningful after the handshake.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeLaunch {
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				continue
			}
			select {
			case s.rig.Launch() <- struct{}{}:
			default:
				// Launch backlog full; the gate's re-arm semantics make the
				// dropped action indistinguishable anyway.
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sid string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, protocol.ErrProtoExpectedHello), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, protocol.ErrProtoBadVersion), time.Now().Add(time.Second))
		return "", nil
	}

	sid = fmt.Sprintf("H%d", s.nextID.Add(1))
	out = make(chan []byte, 8)

	cfg := s.rig.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sid,
		RigID:           cfg.ID,
		RigParams: protocol.RigParams{
			TickRateHz:    cfg.Tune.TickRateHz,
			Bits:          cfg.Tune.Bits,
			GateOpenTicks: cfg.Tune.Gate.OpenTicks,
			MarbleSupply:  cfg.Tune.Marble.Supply,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}

	return sid, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
