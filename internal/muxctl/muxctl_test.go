package muxctl

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeMux is a minimal stand-in for ODR-DabMux's control socket: it
// answers every framed command, "ping" included, with whatever behavior
// returns for it.
func fakeMux(t *testing.T, behavior func(cmd []string) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFakeMux(conn, behavior)
		}
	}()
	return ln.Addr().String()
}

func serveFakeMux(conn net.Conn, behavior func(cmd []string) string) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		var parts []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			done := strings.HasSuffix(line, endOfMessageMarker)
			line = strings.TrimSuffix(line, endOfMessageMarker)
			parts = append(parts, line)
			if done {
				break
			}
		}
		reply := behavior(parts)
		conn.Write([]byte(reply + endOfMessageMarker + "\n"))
	}
}

func TestSendOkRoundTrip(t *testing.T) {
	addr := fakeMux(t, func(cmd []string) string {
		if cmd[0] == "ping" {
			return "ok"
		}
		return "ok"
	})
	client := New("tcp", addr)
	defer client.Close()

	reply, err := client.Set(context.Background(), "services", "label", "ALERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != StatusOk {
		t.Fatalf("expected StatusOk, got %v", reply.Status)
	}
}

func TestSendNotReadyWhenPingFails(t *testing.T) {
	addr := fakeMux(t, func(cmd []string) string {
		if cmd[0] == "ping" {
			return "not-ok"
		}
		return "ok"
	})
	client := New("tcp", addr)
	defer client.Close()

	reply, err := client.Get(context.Background(), "ensemble", "label")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != StatusNotReady {
		t.Fatalf("expected StatusNotReady, got %v", reply.Status)
	}
}

func TestSendDisconnectedOnTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never reply, forcing the client to time out.
		time.Sleep(200 * time.Millisecond)
	}()

	client := New("tcp", ln.Addr().String(), WithTimeout(20*time.Millisecond))
	defer client.Close()

	reply, err := client.Send(context.Background(), "ping")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if reply.Status != StatusDisconnected {
		t.Fatalf("expected StatusDisconnected, got %v", reply.Status)
	}
}

func TestSerializesOneOutstandingRequest(t *testing.T) {
	addr := fakeMux(t, func(cmd []string) string { return "ok" })
	client := New("tcp", addr)
	defer client.Close()

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			client.Send(context.Background(), "ping")
			done <- struct{}{}
		}()
	}
	<-done
	<-done
}
