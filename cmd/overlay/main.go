package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"deckpair/internal/domain"
	"deckpair/internal/infrastructure/config"
	"deckpair/internal/interface/api/ws"
	"deckpair/internal/overlay"
	"deckpair/internal/peer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	code, err := peer.GenerateCode()
	if err != nil {
		log.Fatal(err)
	}

	var server *ws.Server

	state := overlay.NewState(overlay.Timeouts{}, domain.DefaultSoundBoard(), func(v overlay.View) {
		server.PublishView(v)
	})

	listener := peer.NewListener(code, peer.Callbacks{
		OnPayload: state.Apply,
		OnStatus: func(st domain.ConnStatus) {
			log.Printf("overlay: deck link %s", st)
		},
	})

	server = ws.NewServer(cfg.ListenAddr, listener)

	log.Printf("overlay: pairing code %s", code)
	log.Printf("overlay: point the deck at ws://%s and enter the code", cfg.ListenAddr)

	if err := server.Start(ctx); err != nil {
		log.Fatal(err)
	}

	log.Println("overlay: shut down")
}
