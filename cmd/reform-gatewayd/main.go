// Command reform-gatewayd runs the public-facing Gateway: it terminates
// plain HTTP, TLS-wrapped HTTPS, RTSP-over-TCP and CONNECT on one TCP
// listener, accepts registering Nodes over QUIC, and steers each accepted
// stream to the Node that registered the request's target identifier.
package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/reformc/rweb/internal/certutil"
	"github.com/reformc/rweb/internal/gateway"
	"github.com/reformc/rweb/internal/gwconfig"
	"github.com/reformc/rweb/internal/quictransport"
	"github.com/reformc/rweb/internal/registry"
	"github.com/reformc/rweb/internal/rendezvous"
)

func main() {
	httpPort := flag.Int("port", 80, "public TCP port for HTTP/HTTPS/RTSP/CONNECT")
	quicPort := flag.Int("quic-port", 4433, "UDP port Nodes register against")
	probePort := flag.Int("probe-port", 4434, "UDP port answering P2PTEST address-echo probes")
	bind := flag.String("bind", "0.0.0.0", "address to bind all listeners to")
	certPath := flag.String("cert", "", "PEM certificate bundle (self-signed generated if empty)")
	keyPath := flag.String("key", "", "PEM private key (self-signed generated if empty)")
	configPath := flag.String("config", "", "optional YAML config file, overridden by any flag given explicitly")
	flag.Parse()

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if *configPath != "" {
		cfg, err := gwconfig.Load(*configPath)
		if err != nil {
			log.Fatalf("reform-gatewayd: %v", err)
		}
		*bind = gwconfig.Overlay(*bind, explicit["bind"], cfg.Bind)
		*httpPort = gwconfig.OverlayInt(*httpPort, explicit["port"], cfg.HTTPPort)
		*quicPort = gwconfig.OverlayInt(*quicPort, explicit["quic-port"], cfg.QUICPort)
		*certPath = gwconfig.Overlay(*certPath, explicit["cert"], cfg.CertPath)
		*keyPath = gwconfig.Overlay(*keyPath, explicit["key"], cfg.KeyPath)
	}

	certPEM, keyPEM := loadOrGenerateCert(*certPath, *keyPath)

	tr, quicTLS, err := quictransport.OpenDualEndpoint(udpAddr(*bind, *quicPort), certPEM, keyPEM, nil)
	if err != nil {
		log.Fatalf("reform-gatewayd: open QUIC endpoint: %v", err)
	}
	ln, err := quictransport.Listen(tr, quicTLS)
	if err != nil {
		log.Fatalf("reform-gatewayd: listen QUIC: %v", err)
	}

	probeTr, probeTLS, err := quictransport.OpenDualEndpoint(udpAddr(*bind, *probePort), certPEM, keyPEM, nil)
	if err != nil {
		log.Fatalf("reform-gatewayd: open probe QUIC endpoint: %v", err)
	}
	probeLn, err := quictransport.Listen(probeTr, probeTLS)
	if err != nil {
		log.Fatalf("reform-gatewayd: listen probe QUIC: %v", err)
	}

	publicTLS, err := publicTLSConfig(certPEM, keyPEM)
	if err != nil {
		log.Fatalf("reform-gatewayd: build public TLS config: %v", err)
	}

	reg := registry.New()
	gw := gateway.New(reg, publicTLS)

	publicLn, err := net.Listen("tcp", tcpAddr(*bind, *httpPort))
	if err != nil {
		log.Fatalf("reform-gatewayd: listen public TCP: %v", err)
	}

	log.Printf("reform-gatewayd: public listener on %s, QUIC registration on %s, probe on %s",
		publicLn.Addr(), ln.Addr(), probeLn.Addr())

	go func() {
		if err := gw.Serve(publicLn); err != nil {
			log.Fatalf("reform-gatewayd: public listener stopped: %v", err)
		}
	}()

	go func() {
		if err := rendezvous.RunProbeServer(context.Background(), probeLn); err != nil {
			log.Fatalf("reform-gatewayd: probe server stopped: %v", err)
		}
	}()

	if err := quictransport.AcceptLoop(context.Background(), ln, gw.AcceptNodeConn); err != nil {
		log.Fatalf("reform-gatewayd: QUIC accept loop stopped: %v", err)
	}
}

func loadOrGenerateCert(certPath, keyPath string) (certPEM, keyPEM []byte) {
	if certPath == "" || keyPath == "" {
		log.Printf("reform-gatewayd: no --cert/--key given, generating a self-signed identity")
		cert, key, err := certutil.GenerateSelfSigned(certutil.DefaultValidity)
		if err != nil {
			log.Fatalf("reform-gatewayd: generate self-signed cert: %v", err)
		}
		return cert, key
	}

	cert, err := os.ReadFile(certPath)
	if err != nil {
		log.Fatalf("reform-gatewayd: read --cert: %v", err)
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		log.Fatalf("reform-gatewayd: read --key: %v", err)
	}
	return cert, key
}

// publicTLSConfig builds the TLS config the Gateway presents on its public
// HTTPS listener, separate from the QUIC endpoint's config: both sides
// happen to load the same cert/key pair, but the public listener never
// restricts ALPN to "reform" and accepts ordinary browser client hellos.
// certPEM is split and re-concatenated through SplitChain first so an
// operator-supplied bundle carrying stray PEM blocks (comments, an
// intermediate that isn't a CERTIFICATE block) doesn't reach tls.X509KeyPair
// unfiltered.
func publicTLSConfig(certPEM, keyPEM []byte) (*tls.Config, error) {
	chain, err := certutil.SplitChain(certPEM)
	if err != nil {
		return nil, fmt.Errorf("reform-gatewayd: split cert chain: %w", err)
	}
	cert, err := tls.X509KeyPair(bytes.Join(chain, nil), keyPEM)
	if err != nil {
		return nil, fmt.Errorf("reform-gatewayd: load public keypair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func udpAddr(bind string, port int) string {
	return net.JoinHostPort(bind, strconv.Itoa(port))
}

func tcpAddr(bind string, port int) string {
	return net.JoinHostPort(bind, strconv.Itoa(port))
}
