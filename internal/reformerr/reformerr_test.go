package reformerr

import (
	"strconv"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(CodeDuplicateRegistration, "node_mac already online")
	want := "code:401, msg:node_mac already online"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeHeaderMalformed, "bad field %q", "Host")
	if !strings.Contains(err.Error(), `bad field "Host"`) {
		t.Fatalf("Newf formatted wrong: %v", err)
	}
}

func TestCannedDeviceOffline(t *testing.T) {
	body := DeviceOffline()
	s := string(body)
	if !strings.HasPrefix(s, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", s)
	}
	if !strings.Contains(s, "Content-Type: text/plain; charset=utf-8") {
		t.Fatal("missing content-type header")
	}
	if !strings.Contains(s, "设备未连接") {
		t.Fatal("missing device-offline body text")
	}
}

func TestCannedLoopDetected(t *testing.T) {
	s := string(LoopDetected())
	if !strings.HasPrefix(s, "HTTP/1.1 508 Loop Detected\r\n") {
		t.Fatalf("unexpected status line: %q", s)
	}
}

func TestCannedConnectNotAllowed(t *testing.T) {
	s := string(ConnectNotAllowed())
	if !strings.HasPrefix(s, "HTTP/1.1 400 Bad Request\r\n") {
		t.Fatalf("unexpected status line: %q", s)
	}
	if !strings.Contains(s, "Connection: close") {
		t.Fatal("missing Connection: close header")
	}
}

func TestCannedBadRequestLengthMatchesBody(t *testing.T) {
	raw := BadRequest()
	s := string(raw)
	idx := strings.Index(s, "\r\n\r\n")
	if idx < 0 {
		t.Fatal("missing header/body separator")
	}
	body := s[idx+4:]
	if !strings.Contains(s, "Content-Length: "+strconv.Itoa(len(body))) {
		t.Fatalf("Content-Length does not match body length %d: %q", len(body), s)
	}
}

func TestCannedConnectEstablished(t *testing.T) {
	if string(ConnectEstablished()) != "HTTP/1.1 200 Connection Established\r\n\r\n" {
		t.Fatalf("unexpected body: %q", ConnectEstablished())
	}
}
