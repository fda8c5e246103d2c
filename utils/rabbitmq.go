package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/KeithZHIJIAN/nce-simexchange/feed"
	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

// NewChanel connects to the broker at url and opens a channel on it.
func NewChanel(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	return conn, ch, nil
}

func FailOnError(err error, msg string) {
	if err != nil {
		log.Panicf("%s: %s", msg, err)
	}
}

// DeclareSymbolQueue declares the command queue of symbol.
func DeclareSymbolQueue(ch *amqp.Channel, symbol string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		symbol, // name
		false,  // durable
		false,  // delete when unused
		false,  // exclusive
		false,  // no-wait
		nil,    // arguments
	)
}

// RabbitmqConsume returns the command deliveries of symbol's queue. At
// most prefetch deliveries are outstanding before they are acked.
func RabbitmqConsume(ch *amqp.Channel, symbol string, prefetch int) (<-chan amqp.Delivery, error) {
	q, err := DeclareSymbolQueue(ch, symbol)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: declare queue %s: %w", symbol, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("rabbitmq: qos: %w", err)
	}
	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: consume %s: %w", symbol, err)
	}
	return msgs, nil
}

// Publisher is the publishing half of an amqp channel.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func RabbitmqSend(ch Publisher, exchange, key, contentType string, body []byte) error {
	return ch.Publish(
		exchange, // exchange
		key,      // routing key
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType: contentType,
			Body:        body,
		})
}

// SeedQueue publishes a starting ladder for symbol: bids from 50 to 100,
// asks from 110 to 150 and one ask at 100 that crosses the top bid.
func SeedQueue(ch Publisher, symbol string) error {
	commands := make([]string, 0)
	for price := 50; price < 110; price += 10 {
		commands = append(commands, fmt.Sprintf("add %s limit bid 1 %d", symbol, price))
	}
	for price := 110; price < 160; price += 10 {
		commands = append(commands, fmt.Sprintf("add %s limit ask 3 %d", symbol, price))
	}
	commands = append(commands, fmt.Sprintf("add %s limit ask 2 100", symbol))

	for _, cmd := range commands {
		if err := RabbitmqSend(ch, "", symbol, "text/plain", []byte(cmd)); err != nil {
			return fmt.Errorf("rabbitmq: seed %s: %w", symbol, err)
		}
	}
	return nil
}

// DeclareTradeExchange declares the fanout exchange trades are broadcast on.
func DeclareTradeExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		false,    // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
}

// TradePublisher is a feed subscriber that republishes every trade as JSON
// on a fanout exchange, routed by symbol. It asks the feed for batch
// trades at a time and requests more once a batch has been sent.
type TradePublisher struct {
	ch       Publisher
	exchange string
	batch    int64

	mu        sync.Mutex
	sub       *feed.Subscription
	inBatch   int64
	published int64
	failed    int64
	done      chan struct{}
}

func NewTradePublisher(ch Publisher, exchange string, batch int64) *TradePublisher {
	if batch <= 0 {
		batch = 1
	}
	return &TradePublisher{ch: ch, exchange: exchange, batch: batch, done: make(chan struct{})}
}

func (p *TradePublisher) OnSubscribe(s *feed.Subscription) {
	p.mu.Lock()
	p.sub = s
	p.mu.Unlock()
	s.Request(p.batch)
}

func (p *TradePublisher) OnTrade(trade orderbook.Trade) {
	body, err := json.Marshal(trade)
	if err == nil {
		err = RabbitmqSend(p.ch, p.exchange, trade.Symbol, "application/json", body)
	}

	p.mu.Lock()
	if err != nil {
		p.failed++
		log.Printf("[rabbitmq] publish trade %s: %v", trade.ID, err)
	} else {
		p.published++
	}
	p.inBatch++
	more := p.inBatch == p.batch
	if more {
		p.inBatch = 0
	}
	sub := p.sub
	p.mu.Unlock()

	if more {
		sub.Request(p.batch)
	}
}

func (p *TradePublisher) OnComplete() {
	p.mu.Lock()
	log.Printf("[rabbitmq] trade publisher done: %d published, %d failed", p.published, p.failed)
	p.mu.Unlock()
	close(p.done)
}

// Done is closed after the feed completes.
func (p *TradePublisher) Done() <-chan struct{} {
	return p.done
}

func (p *TradePublisher) Published() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

func (p *TradePublisher) Failed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
