package reformerr

import "fmt"

// Canned HTTP response bodies, byte-exact per the wire spec.

const deviceOfflineBody = "设备未连接"

// DeviceOffline is written when the requested identifier has no live
// registration, or opening a bi-stream on its connection failed.
func DeviceOffline() []byte {
	return []byte(fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s",
		len([]byte(deviceOfflineBody)), deviceOfflineBody,
	))
}

// LoopDetected is written when the Node's resolved forward target equals
// the Gateway's own address.
func LoopDetected() []byte {
	body := "Error: Request loop detected"
	return []byte(fmt.Sprintf("HTTP/1.1 508 Loop Detected\r\nContent-Length: %d\r\n\r\n%s", len(body), body))
}

// ConnectNotAllowed is written when a CONNECT request arrives over the
// plain-TCP (non-TLS) listener.
func ConnectNotAllowed() []byte {
	return []byte("HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\n")
}

// BadRequest is written by the Node when the target identifier is unknown
// or the inbound stream's six-byte prefix could not be read.
func BadRequest() []byte {
	body := "Error: Bad Request"
	return []byte(fmt.Sprintf("HTTP/1.1 400 Bad Request\r\nContent-Length: %d\r\n\r\n%s", len(body), body))
}

// ConnectEstablished is written by the Node once the CONNECT target TCP
// connection succeeds.
func ConnectEstablished() []byte {
	return []byte("HTTP/1.1 200 Connection Established\r\n\r\n")
}
