package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/KeithZHIJIAN/nce-simexchange/analytics"
	"github.com/KeithZHIJIAN/nce-simexchange/engine"
	"github.com/KeithZHIJIAN/nce-simexchange/utils"
)

// Runs the engine headless, fed by one RabbitMQ command queue per symbol.
func main() {
	cfg, err := utils.LoadConfig()
	utils.FailOnError(err, "Failed to load config")
	if cfg.AmqpURL == "" {
		log.Fatal("AMQP_URL is required")
	}

	stats := analytics.NewService(cfg.AnalyticsWindow, cfg.AnalyticsRequest)
	me, err := engine.NewMatchingEngine(engine.Config{LaneBuffer: cfg.LaneBuffer, FeedCapacity: cfg.FeedBuffer}, stats)
	utils.FailOnError(err, "Failed to start matching engine")

	conn, ch, err := utils.NewChanel(cfg.AmqpURL)
	utils.FailOnError(err, "Failed to connect to RabbitMQ")
	defer conn.Close()

	utils.FailOnError(utils.DeclareTradeExchange(ch, cfg.TradeExchange), "Failed to declare an exchange")
	_, err = me.Subscribe(utils.NewTradePublisher(ch, cfg.TradeExchange, 64))
	utils.FailOnError(err, "Failed to subscribe trade publisher")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, symbol := range cfg.Symbols {
		me.AddOrderBook(symbol)
		qch, err := conn.Channel()
		utils.FailOnError(err, "Failed to open a channel")
		msgs, err := utils.RabbitmqConsume(qch, symbol, cfg.LaneBuffer)
		utils.FailOnError(err, "Failed to register a consumer")

		wg.Add(1)
		go func(symbol string, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			listen(ctx, me, symbol, msgs)
		}(symbol, msgs)
	}

	<-ctx.Done()
	wg.Wait()
	shutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := me.Close(shutdown); err != nil {
		log.Printf("[orderbook] close: %v", err)
	}
	for _, symbol := range me.Symbols() {
		log.Println(me.MarketSummary(symbol))
	}
}

// listen applies the commands of one queue in arrival order.
func listen(ctx context.Context, me *engine.MatchingEngine, symbol string, msgs <-chan amqp.Delivery) {
	log.Printf(" [*] %s waiting for messages. To exit press CTRL+C", symbol)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				log.Printf("[orderbook] %s queue closed", symbol)
				return
			}
			if _, err := me.Apply(ctx, string(d.Body)); err != nil {
				log.Printf("[orderbook] %s: %q: %v", symbol, d.Body, err)
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}
