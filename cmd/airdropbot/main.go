// Command airdropbot runs the airdrop onboarding Telegram bot.
package main

import (
	"log"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/app"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/config"
	corecmd "github.com/Diamond001cloud/webhook-ape-airdrop1/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(cfg.(*config.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
