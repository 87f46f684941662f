package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/timada-org/skald/internal/core"
	"github.com/timada-org/skald/pkg/api"
	"github.com/timada-org/skald/pkg/client"
	"github.com/timada-org/skald/pkg/event"
)

var (
	playSession string

	playCmd = &cobra.Command{
		Use:   "play",
		Short: "Play a session from the terminal",

		Run: func(cmd *cobra.Command, args []string) {
			config, err := core.NewConfig(cfgFile)
			if err != nil {
				log.Fatalln(err)
			}

			service, err := api.New(config.APIOptions())
			if err != nil {
				log.Fatalln(err)
			}

			ctx := context.Background()

			id := playSession

			if id == "" {
				id, err = service.CreateSession(ctx)
				if err != nil {
					log.Fatalln(err)
				}

				fmt.Println(promptStyle.Render("session " + id))
			}

			done := make(chan struct{}, 1)

			c := client.New(config.StreamOptions())
			defer c.Disconnect()

			for _, t := range event.Types() {
				c.On(t, printEvent)
			}

			c.On(event.TypeComplete, func(e event.Event) {
				select {
				case done <- struct{}{}:
				default:
				}
			})

			c.OnError(func(err error) {
				fmt.Println(errorStyle.Render(err.Error()))
			})

			c.Connect(id)

			state, err := service.State(ctx, id)
			if err != nil {
				log.Fatalln(err)
			}

			fmt.Println(updateStyle.Render(summarize(*state)))

			scanner := bufio.NewScanner(os.Stdin)

			for {
				fmt.Print(promptStyle.Render("> "))

				if !scanner.Scan() {
					break
				}

				text := strings.TrimSpace(scanner.Text())

				if text == "" {
					continue
				}

				if text == "quit" {
					break
				}

				if err := service.SendAction(ctx, id, text); err != nil {
					fmt.Println(errorStyle.Render(err.Error()))
					continue
				}

				select {
				case <-done:
				case <-time.After(30 * time.Second):
					fmt.Println(errorStyle.Render("turn timed out"))
				}
			}
		},
	}
)

func init() {
	playCmd.Flags().StringVarP(&playSession, "session", "s", "", "session id to join, created when empty")
}
