package utils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/KeithZHIJIAN/nce-simexchange/feed"
	"github.com/KeithZHIJIAN/nce-simexchange/orderbook"
)

const TradeTable = "executed_trades"

func NewDB(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Execer runs a statement; *sql.DB and *sql.Tx satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func CreateTradeTable(ctx context.Context, db Execer, table string) error {
	name := pq.QuoteIdentifier(table)
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s
	(
		TRADEID 	VARCHAR(64) 		NOT NULL,
		SYMBOL  	VARCHAR(64) 		NOT NULL,
		BUYORDERID  	VARCHAR(64) 		NOT NULL,
		SELLORDERID  	VARCHAR(64) 		NOT NULL,
		PRICE 		DECIMAL(15,5) 		NOT NULL,
		QUANTITY 	BIGINT 			NOT NULL,
		TIME  		timestamp without time zone 	NOT NULL,
		PRIMARY KEY(TRADEID)
	)`, name)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: create %s: %w", table, err)
	}
	index := pq.QuoteIdentifier("idx_" + table + "_symbol_time")
	query = fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(SYMBOL, TIME);", index, name)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: index %s: %w", table, err)
	}
	return nil
}

func DropTable(ctx context.Context, db Execer, table string) error {
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pq.QuoteIdentifier(table))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: drop %s: %w", table, err)
	}
	return nil
}

func InsertTrade(ctx context.Context, db Execer, table string, t orderbook.Trade) error {
	query := fmt.Sprintf("INSERT INTO %s (TRADEID, SYMBOL, BUYORDERID, SELLORDERID, PRICE, QUANTITY, TIME) VALUES ($1, $2, $3, $4, $5, $6, $7);", pq.QuoteIdentifier(table))
	_, err := db.ExecContext(ctx, query, t.ID, t.Symbol, t.BuyOrderID, t.SellOrderID, t.Price, t.Quantity, t.Time.UTC())
	return err
}

// TradeLog is a feed subscriber that appends executed trades to a table.
// Rows are written for audit only; nothing reads them back.
type TradeLog struct {
	db      Execer
	table   string
	timeout time.Duration

	mu      sync.Mutex
	sub     *feed.Subscription
	written int64
	failed  int64
	done    chan struct{}
}

func NewTradeLog(db Execer, table string) *TradeLog {
	if table == "" {
		table = TradeTable
	}
	return &TradeLog{db: db, table: table, timeout: 5 * time.Second, done: make(chan struct{})}
}

func (l *TradeLog) OnSubscribe(s *feed.Subscription) {
	l.mu.Lock()
	l.sub = s
	l.mu.Unlock()
	s.Request(1)
}

func (l *TradeLog) OnTrade(trade orderbook.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	err := InsertTrade(ctx, l.db, l.table, trade)
	cancel()

	l.mu.Lock()
	if err != nil {
		l.failed++
		log.Printf("[postgres] insert trade %s: %v", trade.ID, err)
	} else {
		l.written++
	}
	sub := l.sub
	l.mu.Unlock()
	sub.Request(1)
}

func (l *TradeLog) OnComplete() {
	l.mu.Lock()
	log.Printf("[postgres] trade log done: %d written, %d failed", l.written, l.failed)
	l.mu.Unlock()
	close(l.done)
}

func (l *TradeLog) Done() <-chan struct{} {
	return l.done
}

func (l *TradeLog) Written() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

func (l *TradeLog) Failed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}
