package ws_test

import (
	"context"
	"encoding/json"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"marblemech/internal/protocol"
	"marblemech/internal/sim/rig"
	"marblemech/internal/sim/tuning"
	"marblemech/internal/transport/ws"
)

func startTestServer(t *testing.T) (*rig.Rig, string, func()) {
	t.Helper()

	r := rig.New(rig.Config{ID: "testrig", Seed: 42, Tune: tuning.Defaults()})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()

	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	srv := httptest.NewServer(ws.NewServer(r, logger).Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return r, url, func() {
		srv.Close()
		cancel()
	}
}

func dialAndHello(t *testing.T, url string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "hud-test",
	}
	b, _ := json.Marshal(hello)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	return conn, welcome
}

func TestHandshake_Welcome(t *testing.T) {
	_, url, stop := startTestServer(t)
	defer stop()

	conn, welcome := dialAndHello(t, url)
	defer conn.Close()

	if welcome.Type != protocol.TypeWelcome {
		t.Fatalf("type = %q, want WELCOME", welcome.Type)
	}
	if welcome.SessionID == "" {
		t.Fatal("empty session id")
	}
	if welcome.RigID != "testrig" {
		t.Fatalf("rig id = %q", welcome.RigID)
	}
	d := tuning.Defaults()
	if welcome.RigParams.Bits != d.Bits || welcome.RigParams.TickRateHz != d.TickRateHz {
		t.Fatalf("rig params %+v do not match tuning", welcome.RigParams)
	}
	if welcome.RigParams.GateOpenTicks != d.Gate.OpenTicks || welcome.RigParams.MarbleSupply != d.Marble.Supply {
		t.Fatalf("rig params %+v do not match tuning", welcome.RigParams)
	}
}

func TestHandshake_RejectsBadVersion(t *testing.T) {
	_, url, stop := startTestServer(t)
	defer stop()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	b, _ := json.Marshal(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.9"})
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("server accepted a mismatched protocol version")
	}
}

func TestHandshake_RejectsNonHelloFirst(t *testing.T) {
	_, url, stop := startTestServer(t)
	defer stop()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	b, _ := json.Marshal(protocol.LaunchMsg{Type: protocol.TypeLaunch, ProtocolVersion: protocol.Version})
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("server accepted LAUNCH before HELLO")
	}
}

func TestSession_FramesAndLaunch(t *testing.T) {
	_, url, stop := startTestServer(t)
	defer stop()

	conn, _ := dialAndHello(t, url)
	defer conn.Close()

	launch := protocol.LaunchMsg{Type: protocol.TypeLaunch, ProtocolVersion: protocol.Version}
	b, _ := json.Marshal(launch)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write launch: %v", err)
	}

	// Frames stream once per tick; within a second the launch must be visible.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var f protocol.FrameMsg
		if err := json.Unmarshal(msg, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if f.Type != protocol.TypeFrame {
			t.Fatalf("unexpected message type %q", f.Type)
		}
		if f.Launches == 1 {
			return
		}
	}
	t.Fatal("launch never reflected in the frame stream")
}
