package main

import (
	"context"
	"fmt"

	"github.com/KeithZHIJIAN/nce-simexchange/utils"
)

// Recreates the executed trades table.
func main() {
	cfg, err := utils.LoadConfig()
	utils.FailOnError(err, "Failed to load config")

	db, err := utils.NewDB(cfg.DatabaseURL)
	utils.FailOnError(err, "Failed to connect to PostgreSQL")
	defer db.Close()

	ctx := context.Background()
	utils.FailOnError(utils.DropTable(ctx, db, utils.TradeTable), "Failed to drop table")
	utils.FailOnError(utils.CreateTradeTable(ctx, db, utils.TradeTable), "Failed to create table")
	fmt.Println("Database initialized!")
}
