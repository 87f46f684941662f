package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/timada-org/skald/internal/core"
	"github.com/timada-org/skald/pkg/client"
	"github.com/timada-org/skald/pkg/event"
)

var (
	watchSession string
	watchOnly    string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the event stream of a session",

		Run: func(cmd *cobra.Command, args []string) {
			config, err := core.NewConfig(cfgFile)
			if err != nil {
				log.Fatalln(err)
			}

			only := event.Types()

			if watchOnly != "" {
				only, err = event.ParseTypes(watchOnly)
				if err != nil {
					log.Fatalln(err)
				}
			}

			c := client.New(config.StreamOptions())
			defer c.Disconnect()

			for _, t := range only {
				c.On(t, printEvent)
			}

			c.OnError(func(err error) {
				fmt.Println(errorStyle.Render(err.Error()))
			})

			c.Connect(watchSession)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt)
			<-quit
		},
	}
)

func init() {
	watchCmd.Flags().StringVarP(&watchSession, "session", "s", "", "session id to follow")
	watchCmd.Flags().StringVarP(&watchOnly, "only", "o", "", "comma separated event types to show")

	if err := watchCmd.MarkFlagRequired("session"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
