// cmd/backtest replays completed signals through the parameter grid and
// manages the resulting recommendations. Without an action flag it runs a
// one-shot backtest over the configured symbols; with --list/--approve/
// --reject/--rollback it inspects or transitions stored recommendations.
//
// Usage:
//
//	go run ./cmd/backtest --symbols=EUR/USD,GBP/USD
//	go run ./cmd/backtest --list
//	go run ./cmd/backtest --approve=3
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"fxsignals/internal/backtest"
	sqlitestore "fxsignals/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	dbPath := flag.String("db", "data/signals.db", "Path to SQLite database")
	symbolsStr := flag.String("symbols", "EUR/USD,GBP/USD,USD/JPY,AUD/USD", "Comma-separated pairs to backtest")
	list := flag.Bool("list", false, "List stored recommendations and exit")
	approve := flag.Int64("approve", 0, "Approve a pending recommendation by ID")
	reject := flag.Int64("reject", 0, "Reject a pending recommendation by ID")
	rollback := flag.Int64("rollback", 0, "Roll back an approved recommendation by ID")
	flag.Parse()

	godotenv.Load()

	store, err := sqlitestore.New(sqlitestore.Config{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	switch {
	case *list:
		listRecommendations(ctx, store)
	case *approve > 0:
		if err := store.ApproveRecommendation(ctx, *approve); err != nil {
			log.Fatalf("[backtest] approve %d: %v", *approve, err)
		}
		fmt.Printf("recommendation %d approved; parameters installed\n", *approve)
	case *reject > 0:
		if err := store.RejectRecommendation(ctx, *reject); err != nil {
			log.Fatalf("[backtest] reject %d: %v", *reject, err)
		}
		fmt.Printf("recommendation %d rejected\n", *reject)
	case *rollback > 0:
		if err := store.RollBackRecommendation(ctx, *rollback); err != nil {
			log.Fatalf("[backtest] rollback %d: %v", *rollback, err)
		}
		fmt.Printf("recommendation %d rolled back; parameter override removed\n", *rollback)
	default:
		runBacktest(ctx, store, parseSymbols(*symbolsStr))
	}
}

func runBacktest(ctx context.Context, store *sqlitestore.Store, symbols []string) {
	if len(symbols) == 0 {
		log.Fatal("[backtest] no valid symbols specified")
	}

	bt := backtest.New(store, store, store)

	recommended := 0
	for _, symbol := range symbols {
		rec, err := bt.RunSymbol(ctx, symbol)
		if err != nil {
			log.Printf("[backtest] %s: %v", symbol, err)
			continue
		}
		if rec == nil {
			fmt.Printf("  %-8s no improvement found\n", symbol)
			continue
		}
		recommended++
		fmt.Printf("  %-8s EMA %d/%d ATR %.1f -> EMA %d/%d ATR %.1f  (%.1f%% -> %.1f%%, n=%d)\n",
			symbol,
			rec.Current.FastPeriod, rec.Current.SlowPeriod, rec.Current.ATRStopMultiplier,
			rec.Proposed.FastPeriod, rec.Proposed.SlowPeriod, rec.Proposed.ATRStopMultiplier,
			rec.BaselineWinRate*100, rec.ProjectedWinRate*100, rec.SampleSize)
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbols tested:    %-16d ║\n", len(symbols))
	fmt.Printf("║  Grid combinations: %-16d ║\n", len(backtest.Grid()))
	fmt.Printf("║  Recommendations:   %-16d ║\n", recommended)
	fmt.Println("╚══════════════════════════════════════╝")
	if recommended > 0 {
		fmt.Println("\nreview with --list, install with --approve=ID")
	}
}

func listRecommendations(ctx context.Context, store *sqlitestore.Store) {
	recs, err := store.ListRecommendations(ctx, "")
	if err != nil {
		log.Fatalf("[backtest] list: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("no recommendations stored")
		return
	}
	fmt.Printf("%-4s %-8s %-11s %-22s %-16s %s\n",
		"ID", "SYMBOL", "STATUS", "PROPOSED", "WIN RATE", "CREATED")
	for _, rec := range recs {
		proposed := fmt.Sprintf("EMA %d/%d ATR %.1f",
			rec.Proposed.FastPeriod, rec.Proposed.SlowPeriod, rec.Proposed.ATRStopMultiplier)
		rates := fmt.Sprintf("%.1f%% -> %.1f%%", rec.BaselineWinRate*100, rec.ProjectedWinRate*100)
		fmt.Printf("%-4d %-8s %-11s %-22s %-16s %s\n",
			rec.ID, rec.Symbol, rec.Status, proposed, rates,
			rec.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func parseSymbols(s string) []string {
	var symbols []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" || !strings.Contains(p, "/") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(p))
	}
	return symbols
}
