package utils

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeithZHIJIAN/nce-simexchange/feed"
	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (c *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{exchange, key, msg})
	return nil
}

type execCall struct {
	query string
	args  []interface{}
}

type fakeDB struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (d *fakeDB) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.calls = append(d.calls, execCall{query, args})
	return nil, nil
}

func trades(symbol string, n int) []orderbook.Trade {
	out := make([]orderbook.Trade, n)
	for i := range out {
		out[i] = orderbook.NewTrade("b", "s", symbol, decimal.NewFromInt(int64(100+i)), int64(i+1), time.Now())
	}
	return out
}

func publishAndClose(t *testing.T, f *feed.Feed, batches ...[]orderbook.Trade) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, b := range batches {
		require.NoError(t, f.Publish(ctx, b[0].Symbol, b))
	}
	require.NoError(t, f.Close(ctx))
}

func TestTradePublisherSendsJSONPerSymbol(t *testing.T) {
	ch := &fakeChannel{}
	p := NewTradePublisher(ch, "TRADES.Exchange", 3)
	f := feed.NewFeed(16)
	_, err := f.Subscribe(p)
	require.NoError(t, err)

	publishAndClose(t, f, trades("AAPL", 4), trades("MSFT", 3))
	<-p.Done()

	assert.Equal(t, int64(7), p.Published())
	require.Len(t, ch.msgs, 7)
	keys := make([]string, 0)
	for _, m := range ch.msgs {
		assert.Equal(t, "TRADES.Exchange", m.exchange)
		assert.Equal(t, "application/json", m.msg.ContentType)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(m.msg.Body, &got))
		assert.Equal(t, m.key, got["symbol"])
		keys = append(keys, m.key)
	}
	assert.Equal(t, []string{"AAPL", "AAPL", "AAPL", "AAPL", "MSFT", "MSFT", "MSFT"}, keys)

	var first orderbook.Trade
	require.NoError(t, json.Unmarshal(ch.msgs[0].msg.Body, &first))
	assert.True(t, first.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(1), first.Quantity)
}

func TestTradePublisherKeepsGoingOnBrokerErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := NewTradePublisher(ch, "X", 1)
	f := feed.NewFeed(4)
	_, err := f.Subscribe(p)
	require.NoError(t, err)

	publishAndClose(t, f, trades("AAPL", 5))
	<-p.Done()
	assert.Equal(t, int64(5), p.Failed())
	assert.Zero(t, p.Published())
}

func TestSeedQueueCommandsParse(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, SeedQueue(ch, "BTCUSD"))
	require.Len(t, ch.msgs, 12)
	for _, m := range ch.msgs {
		assert.Equal(t, "", m.exchange)
		assert.Equal(t, "BTCUSD", m.key)
		fields := strings.Fields(string(m.msg.Body))
		require.Equal(t, "add", fields[0])
		_, err := orderbook.ParseOrder(fields[1:])
		assert.NoError(t, err, string(m.msg.Body))
	}
}

func TestTradeLogInsertsEveryTrade(t *testing.T) {
	db := &fakeDB{}
	l := NewTradeLog(db, "")
	f := feed.NewFeed(2)
	_, err := f.Subscribe(l)
	require.NoError(t, err)

	batch := trades("TSLA", 5)
	publishAndClose(t, f, batch)
	<-l.Done()

	assert.Equal(t, int64(5), l.Written())
	require.Len(t, db.calls, 5)
	for i, c := range db.calls {
		assert.Contains(t, c.query, `INSERT INTO "executed_trades"`)
		assert.Equal(t, batch[i].ID, c.args[0])
		assert.Equal(t, "TSLA", c.args[1])
		assert.Equal(t, batch[i].Quantity, c.args[5])
	}
}

func TestTradeLogCountsFailures(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	l := NewTradeLog(db, "audit")
	f := feed.NewFeed(2)
	_, err := f.Subscribe(l)
	require.NoError(t, err)

	publishAndClose(t, f, trades("TSLA", 3))
	<-l.Done()
	assert.Equal(t, int64(3), l.Failed())
}

func TestCreateAndDropTradeTable(t *testing.T) {
	db := &fakeDB{}
	ctx := context.Background()
	require.NoError(t, CreateTradeTable(ctx, db, "trades"))
	require.NoError(t, DropTable(ctx, db, "trades"))
	require.Len(t, db.calls, 3)
	assert.Contains(t, db.calls[0].query, `CREATE TABLE IF NOT EXISTS "trades"`)
	assert.Contains(t, db.calls[1].query, `ON "trades"(SYMBOL, TIME)`)
	assert.Equal(t, `DROP TABLE IF EXISTS "trades" CASCADE`, db.calls[2].query)

	db.err = errors.New("denied")
	assert.Error(t, CreateTradeTable(ctx, db, "trades"))
}
