package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"
)

func startTCPServer(t *testing.T, handle func(conn net.Conn)) (host string, port int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)

	return addr.IP.String(), addr.Port
}

func TestTCPTransportRoundTrip(t *testing.T) {
	host, port := startTCPServer(t, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if bytes.Equal(buf[:n], []byte("MN?\r\n")) {
			_, _ = conn.Write([]byte("\r\nMN=RC-2SP6T-A12\n\r"))
		}
	})

	tr := NewTCPTransport(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	if err := tr.Write(ctx, []byte("MN?\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := tr.ReadUntil(ctx, []byte("\n\r"), 1024)
	if err != nil {
		t.Fatalf("read until: %v", err)
	}
	if want := []byte("\r\nMN=RC-2SP6T-A12\n\r"); !bytes.Equal(got, want) {
		t.Fatalf("reply mismatch: got %q want %q", got, want)
	}
}

func TestTCPTransportReadTimeout(t *testing.T) {
	host, port := startTCPServer(t, func(conn net.Conn) {
		// Never reply; hold the connection open.
		buf := make([]byte, 64)
		_, _ = conn.Read(buf)
		time.Sleep(2 * time.Second)
		_ = conn.Close()
	})

	tr := NewTCPTransport(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	start := time.Now()
	_, err := tr.ReadUntil(ctx, []byte("\n\r"), 1024)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("read blocked past the deadline: %v", elapsed)
	}
}

func TestTCPTransportNotConnected(t *testing.T) {
	tr := NewTCPTransport("127.0.0.1", 1)
	if err := tr.Write(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestTCPTransportTarget(t *testing.T) {
	tr := NewTCPTransport("192.168.1.100", 0)
	if got, want := tr.Target(), net.JoinHostPort("192.168.1.100", strconv.Itoa(defaultTCPPort)); got != want {
		t.Fatalf("target mismatch: got %q want %q", got, want)
	}
}
