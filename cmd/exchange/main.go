package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/KeithZHIJIAN/nce-simexchange/analytics"
	"github.com/KeithZHIJIAN/nce-simexchange/engine"
	"github.com/KeithZHIJIAN/nce-simexchange/simulator"
	"github.com/KeithZHIJIAN/nce-simexchange/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	utils.FailOnError(err, "Failed to load config")

	stats := analytics.NewService(cfg.AnalyticsWindow, cfg.AnalyticsRequest)
	me, err := engine.NewMatchingEngine(engine.Config{LaneBuffer: cfg.LaneBuffer, FeedCapacity: cfg.FeedBuffer}, stats)
	utils.FailOnError(err, "Failed to start matching engine")

	if cfg.AmqpURL != "" {
		conn, ch, err := utils.NewChanel(cfg.AmqpURL)
		utils.FailOnError(err, "Failed to connect to RabbitMQ")
		defer conn.Close()
		utils.FailOnError(utils.DeclareTradeExchange(ch, cfg.TradeExchange), "Failed to declare an exchange")
		_, err = me.Subscribe(utils.NewTradePublisher(ch, cfg.TradeExchange, 64))
		utils.FailOnError(err, "Failed to subscribe trade publisher")
		watchBroker(conn)
	}
	if cfg.DatabaseURL != "" {
		db, err := utils.NewDB(cfg.DatabaseURL)
		utils.FailOnError(err, "Failed to connect to PostgreSQL")
		defer db.Close()
		utils.FailOnError(utils.CreateTradeTable(context.Background(), db, utils.TradeTable), "Failed to create trade table")
		_, err = me.Subscribe(utils.NewTradeLog(db, utils.TradeTable))
		utils.FailOnError(err, "Failed to subscribe trade log")
	}

	gen := simulator.NewGenerator(me, simulator.Config{
		Symbols:       cfg.Symbols,
		Rate:          cfg.OrdersPerSecond,
		MakerInterval: cfg.MarketMakerInterval,
	})
	gen.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &console{me: me, stats: stats, gen: gen, out: os.Stdout, grace: cfg.ShutdownGrace}
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Printf("[exchange] trading %v, type help for commands", cfg.Symbols)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok || c.execute(ctx, line) {
				break loop
			}
		}
	}

	log.Printf("[exchange] shutting down, grace %s", cfg.ShutdownGrace)
	gen.Stop(cfg.ShutdownGrace)
	shutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := me.Close(shutdown); err != nil {
		log.Printf("[exchange] close: %v", err)
	}
	c.summary()
}

func watchBroker(conn *amqp.Connection) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok {
			log.Printf("[exchange] rabbitmq connection closed: %v", err)
		}
	}()
}
