// rendezvous-server runs the stateless rendezvous registry (spec C6):
// the lookup service Ghostline devices use to find each other's public
// and local addresses and to signal connect requests. It can optionally
// also run a TURN relay for device pairs the connection broker cannot
// otherwise punch through.
//
// Usage:
//
//	rendezvous-server [options]
//
// Options:
//
//	-addr            listen address (default: ":8470")
//	-expiry          device record expiry (default: 5m)
//	-request-ttl     connect request expiry (default: 30s)
//	-sweep-interval  background sweep period (default: 1m)
//	-turn            also run a TURN relay (default: false)
//	-turn-addr       TURN relay UDP listen address (default: ":3478")
//	-turn-realm      TURN authentication realm (default: "ghostline")
//	-turn-relay-ip   public IP relayed traffic is sourced from, required with -turn
//	-turn-user       TURN long-term-credential username
//	-turn-pass       TURN long-term-credential password
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"

	"github.com/ghostline-signal/ghostline/pkg/natpunch"
	"github.com/ghostline-signal/ghostline/pkg/rendezvous"
)

func main() {
	addr := flag.String("addr", ":8470", "listen address")
	expiry := flag.Duration("expiry", rendezvous.DefaultExpiry, "device record expiry")
	requestTTL := flag.Duration("request-ttl", rendezvous.DefaultRequestTTL, "connect request expiry")
	sweepInterval := flag.Duration("sweep-interval", rendezvous.DefaultSweepInterval, "background sweep period")
	turnEnabled := flag.Bool("turn", false, "also run a TURN relay")
	turnAddr := flag.String("turn-addr", ":3478", "TURN relay UDP listen address")
	turnRealm := flag.String("turn-realm", "ghostline", "TURN authentication realm")
	turnRelayIP := flag.String("turn-relay-ip", "", "public IP relayed traffic is sourced from, required with -turn")
	turnUser := flag.String("turn-user", "", "TURN long-term-credential username")
	turnPass := flag.String("turn-pass", "", "TURN long-term-credential password")
	flag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()

	registry := rendezvous.New(rendezvous.Config{
		Expiry:        *expiry,
		RequestTTL:    *requestTTL,
		SweepInterval: *sweepInterval,
		LoggerFactory: loggerFactory,
	})
	registry.Start()
	defer registry.Stop()

	server := rendezvous.NewServer(registry, loggerFactory)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.Handler(),
	}

	var turnServer *turn.Server
	if *turnEnabled {
		if *turnRelayIP == "" {
			log.Fatal("rendezvous-server: -turn-relay-ip is required with -turn")
		}
		relay, err := natpunch.StartRelay(natpunch.RelayConfig{
			ListenAddr:    *turnAddr,
			Realm:         *turnRealm,
			Credentials:   map[string]string{*turnUser: *turnPass},
			RelayIP:       *turnRelayIP,
			LoggerFactory: loggerFactory,
		})
		if err != nil {
			log.Fatalf("rendezvous-server: turn relay: %v", err)
		}
		turnServer = relay
		log.Printf("turn relay listening on %s", *turnAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("rendezvous-server listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("rendezvous-server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("rendezvous-server: shutdown error: %v", err)
	}

	if turnServer != nil {
		if err := turnServer.Close(); err != nil {
			log.Printf("rendezvous-server: turn relay shutdown error: %v", err)
		}
	}
}
