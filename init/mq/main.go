package main

import (
	"fmt"

	"github.com/KeithZHIJIAN/nce-simexchange/utils"
)

// Seeds every configured symbol's command queue with a starting ladder.
func main() {
	cfg, err := utils.LoadConfig()
	utils.FailOnError(err, "Failed to load config")

	conn, ch, err := utils.NewChanel(cfg.AmqpURL)
	utils.FailOnError(err, "Failed to connect to RabbitMQ")
	defer conn.Close()
	defer ch.Close()

	for _, symbol := range cfg.Symbols {
		_, err := utils.DeclareSymbolQueue(ch, symbol)
		utils.FailOnError(err, "Failed to declare a queue")
		utils.FailOnError(utils.SeedQueue(ch, symbol), "Failed to publish a message")
		fmt.Println(symbol, " Order Book initialized")
	}
}
