package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/timada-org/skald/pkg/api"
	"github.com/timada-org/skald/pkg/client"
	"github.com/timada-org/skald/pkg/event"
)

// Run `skald serve` first, then this program. It creates a session,
// follows its stream and plays two scripted turns.
func main() {
	service, err := api.New(api.ClientOptions{
		BaseURL: "http://127.0.0.1:6470",
	})
	if err != nil {
		log.Fatalln(err)
	}

	ctx := context.Background()

	id, err := service.CreateSession(ctx)
	if err != nil {
		log.Fatalln(err)
	}

	log.Printf("session %s", id)

	c := client.New(client.ClientOptions{
		BaseURL:              "http://127.0.0.1:6470",
		ReconnectDelay:       time.Second,
		MaxReconnectAttempts: 3,
	})
	defer c.Disconnect()

	done := make(chan struct{})

	off := c.On(event.TypeNarrativeChunk, func(e event.Event) {
		chunk, err := event.As[event.NarrativeChunk](e)
		if err != nil {
			log.Println(err)
			return
		}

		fmt.Print(chunk.Text)
	})
	defer off()

	c.On(event.TypeComplete, func(e event.Event) {
		fmt.Println()
		done <- struct{}{}
	})

	c.OnError(func(err error) {
		log.Println(err)
	})

	c.Connect(id)

	for _, action := range []string{
		"ask the innkeeper about the road north",
		"set out at first light",
	} {
		if err := service.SendAction(ctx, id, action); err != nil {
			log.Fatalln(err)
		}

		<-done
	}
}
