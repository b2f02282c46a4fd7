// ghostlined runs a Ghostline device: local identity, the message
// store, the peer transport, and, when a rendezvous is configured,
// automatic connection brokering.
//
// Usage:
//
//	ghostlined [options]
//
// Options:
//
//	-data-dir    directory for identity, keys, and the message store (required)
//	-name        device name, only used on first run
//	-listen      peer transport listen address (default: ":0")
//	-rendezvous  rendezvous server URL, e.g. http://rendezvous.example:8470
//	-lan         enable mDNS LAN discovery (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"

	"github.com/ghostline-signal/ghostline/pkg/node"
)

func main() {
	dataDir := flag.String("data-dir", "", "directory for identity, keys, and the message store (required)")
	name := flag.String("name", "", "device name, only used on first run")
	listen := flag.String("listen", node.DefaultListenAddr, "peer transport listen address")
	rendezvousURL := flag.String("rendezvous", "", "rendezvous server URL")
	lan := flag.Bool("lan", true, "enable mDNS LAN discovery")
	flag.Parse()

	if *dataDir == "" {
		log.Fatal("ghostlined: -data-dir is required")
	}

	loggerFactory := logging.NewDefaultLoggerFactory()

	n, err := node.New(node.Config{
		DataDir:            *dataDir,
		DeviceName:         *name,
		ListenAddr:         *listen,
		RendezvousURL:      *rendezvousURL,
		EnableLANDiscovery: *lan,
		LoggerFactory:      loggerFactory,
		OnStateChanged: func(s node.State) {
			log.Printf("state changed: %s", s)
		},
		OnMessage: func(peerID string, plaintext []byte, timestamp time.Time) {
			fmt.Printf("[%s] %s: %s\n", timestamp.Format(time.RFC3339), peerID, plaintext)
		},
		OnPeerConnected: func(peerID, deviceID string) {
			log.Printf("connected to %s (peer %s)", deviceID, peerID)
		},
	})
	if err != nil {
		log.Fatalf("ghostlined: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		log.Fatalf("ghostlined: start: %v", err)
	}

	fmt.Println("========================================")
	fmt.Println("          Ghostline device ready")
	fmt.Println("========================================")
	fmt.Printf("Device ID:    %s\n", n.DeviceID())
	fmt.Printf("Device name:  %s\n", n.DeviceName())
	fmt.Printf("Fingerprint:  %s\n", n.Fingerprint())
	fmt.Println("========================================")

	<-ctx.Done()
	log.Println("shutting down...")

	if err := n.Stop(); err != nil {
		log.Fatalf("ghostlined: stop: %v", err)
	}
}
