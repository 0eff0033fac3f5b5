// Command reform-noded runs a Node: it dials the Gateway over QUIC,
// registers its forwarding table's identifiers, and dispatches every
// inbound bi-stream to the configured upstream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/reformc/rweb/internal/certutil"
	"github.com/reformc/rweb/internal/forwarding"
	"github.com/reformc/rweb/internal/node"
	"github.com/reformc/rweb/internal/quictransport"
	"github.com/reformc/rweb/internal/rendezvous"
)

// probeTimeout bounds how long the Node waits for a P2PTEST address-echo
// reply before proceeding without a self_addr.
const probeTimeout = 5 * time.Second

// Exit codes mirror the C-ABI surface's documented taxonomy (the "p2p"
// feature variant): the library entry points return these, the thin C-ABI
// wrapper is the external collaborator's responsibility.
const (
	exitBadHost          = -30
	exitEmptyForwardList = -31
	exitForwardListParse = -32
	exitP2PListMissing   = -33
	exitP2PListParse     = -34
	exitCertError        = -36
	exitRuntimeInit      = -37
)

func main() {
	serverHost := flag.String("server-host", "", "Gateway host")
	serverPort := flag.Int("server-port", 4433, "Gateway QUIC port")
	proxyListPath := flag.String("proxy-list", "", "path to the proxy-list JSON file")
	p2pListPath := flag.String("p2p-list", "", "path to the p2p-list JSON file (optional)")
	trustedCertPath := flag.String("trusted-cert", "", "path to the Gateway's bundled certificate")
	localPort := flag.Int("local-port", 0, "local UDP port reused for the Gateway dial and hole-punch candidates")
	probePort := flag.Int("probe-port", 4434, "Gateway UDP port answering P2PTEST address-echo probes")
	flag.Parse()

	if *serverHost == "" {
		log.Printf("reform-noded: --server-host is required")
		os.Exit(exitBadHost)
	}

	table := loadProxyList(*proxyListPath)
	if len(table.IDs()) == 0 {
		log.Printf("reform-noded: proxy list has no entries")
		os.Exit(exitEmptyForwardList)
	}
	p2pTable := loadP2PList(*p2pListPath)

	trustedCertPEM, err := os.ReadFile(*trustedCertPath)
	if err != nil {
		log.Printf("reform-noded: read --trusted-cert: %v", err)
		os.Exit(exitCertError)
	}
	if leaf, err := certutil.FirstLeaf(trustedCertPEM); err != nil {
		log.Printf("reform-noded: --trusted-cert: %v", err)
		os.Exit(exitCertError)
	} else {
		log.Printf("reform-noded: trusting Gateway certificate %q (serial %s, expires %s)",
			leaf.Subject.CommonName, leaf.SerialNumber, leaf.NotAfter.Format(time.RFC3339))
	}

	tr, err := quictransport.OpenClientEndpoint(fmt.Sprintf(":%d", *localPort))
	if err != nil {
		log.Printf("reform-noded: open client endpoint: %v", err)
		os.Exit(exitRuntimeInit)
	}

	serverAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(*serverHost, strconv.Itoa(*serverPort)))
	if err != nil {
		log.Printf("reform-noded: resolve --server-host: %v", err)
		os.Exit(exitBadHost)
	}

	selfAddr := probeSelfAddr(tr, &net.UDPAddr{IP: serverAddr.IP, Port: *probePort})

	ctx := context.Background()
	conn, err := quictransport.DialGateway(ctx, tr, serverAddr, trustedCertPEM)
	if err != nil {
		log.Printf("reform-noded: dial Gateway: %v", err)
		os.Exit(exitRuntimeInit)
	}

	gatewayTCPAddr := &net.TCPAddr{IP: serverAddr.IP, Port: serverAddr.Port}
	n := node.New(table, gatewayTCPAddr)
	n.LocalPort = *localPort
	n.SelfAddr = selfAddr

	ids := table.IDs()
	if err := node.Register(ctx, conn, ids); err != nil {
		log.Printf("reform-noded: register: %v", err)
		os.Exit(exitRuntimeInit)
	}
	log.Printf("reform-noded: registered %d identifier(s) with %s", len(ids), serverAddr)

	if p2pTable != nil {
		for _, port := range p2pTable.Ports() {
			cell, _ := p2pTable.LookupPort(port)
			go runPeerRendezvous(conn, *localPort, cell, selfAddr)
		}
	}

	n.AcceptLoop(conn)
}

// probeSelfAddr learns this Node's observed public address by dialing the
// Gateway's P2PTEST probe endpoint, so rendezvous negotiation can report a
// self_addr instead of leaving peers to guess a FullCone NAT type from
// nothing. A probe failure is not fatal: negotiation proceeds with an empty
// self_addr, which natpredict.Classify treats as FullCone.
func probeSelfAddr(tr *quic.Transport, probeAddr *net.UDPAddr) string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	observed, err := rendezvous.ProbeSelfAddr(ctx, tr, probeAddr)
	if err != nil {
		log.Printf("reform-noded: p2ptest probe failed, proceeding without self_addr: %v", err)
		return ""
	}
	log.Printf("reform-noded: observed self address %s via p2ptest probe", observed)
	return observed.String()
}

// runPeerRendezvous is the client-initiator path for one --p2p-list entry:
// it negotiates a hole-punched connection to cell.ID over gatewayConn, then
// tunnels every TCP connection accepted on cell.Port through it.
func runPeerRendezvous(gatewayConn *quic.Conn, localPort int, cell forwarding.P2PCell, selfAddr string) {
	punched, err := rendezvous.Initiate(context.Background(), gatewayConn, localPort, cell.ID, selfAddr)
	if err != nil {
		log.Printf("reform-noded: rendezvous with %s failed: %v", cell.ID, err)
		return
	}

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: int(cell.Port)})
	if err != nil {
		log.Printf("reform-noded: listen peer port %d for %s: %v", cell.Port, cell.ID, err)
		return
	}
	log.Printf("reform-noded: tunnelling 0.0.0.0:%d to %s over hole-punched connection", cell.Port, cell.ID)

	if err := rendezvous.ServeResponsePath(ln, punched, cell.ID); err != nil {
		log.Printf("reform-noded: response path for %s stopped: %v", cell.ID, err)
	}
}

func loadProxyList(path string) *forwarding.Table {
	if path == "" {
		log.Printf("reform-noded: --proxy-list is required")
		os.Exit(exitEmptyForwardList)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("reform-noded: read --proxy-list: %v", err)
		os.Exit(exitForwardListParse)
	}
	table, err := forwarding.ParseProxyList(data)
	if err != nil {
		log.Printf("reform-noded: parse --proxy-list: %v", err)
		os.Exit(exitForwardListParse)
	}
	return table
}

func loadP2PList(path string) *forwarding.P2PTable {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("reform-noded: read --p2p-list: %v", err)
		os.Exit(exitP2PListMissing)
	}
	cells, err := forwarding.ParseP2PList(data)
	if err != nil {
		log.Printf("reform-noded: parse --p2p-list: %v", err)
		os.Exit(exitP2PListParse)
	}
	return forwarding.NewP2PTable(cells)
}
