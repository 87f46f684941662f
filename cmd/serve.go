package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/timada-org/skald/internal/api"
	"github.com/timada-org/skald/internal/core"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the skald game service",

		Run: func(cmd *cobra.Command, args []string) {
			config, err := core.NewConfig(cfgFile)
			if err != nil {
				log.Fatalln(err)
			}

			app := api.New(config)
			defer app.Close()

			log.Fatal(app.Listen())
		},
	}
)
