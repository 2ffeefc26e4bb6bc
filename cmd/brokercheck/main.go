package main

// brokercheck прощупывает доступ к брокеру перед запуском движка:
//
//	brokercheck -inst MESU6
//
// Ходит по тем же REST-ручкам, что и движок: счёт, позиции, мета
// инструмента, котировка. Падает на первой же ошибке.

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"margin_guard/internal/modules/config"
	gws "margin_guard/internal/modules/gateway/service"
	mds "margin_guard/internal/modules/marketdata/service"
)

func main() {
	inst := flag.String("inst", "", "инструмент для проверки меты и котировки")
	timeout := flag.Duration("timeout", 15*time.Second, "общий дедлайн проверки")
	apiKey := flag.String("key", "", "API-ключ вместо ключа из конфига")
	apiSecret := flag.String("secret", "", "API-секрет вместо секрета из конфига")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	gw := gws.NewClient(cfg)
	if *apiKey != "" || *apiSecret != "" {
		gw.SetCreds(*apiKey, *apiSecret)
	}

	acc, err := gw.GetAccount(ctx)
	if err != nil {
		log.Fatalf("account: %v", err)
	}
	fmt.Printf("account: equity=%.2f used=%.2f avail=%.2f upl=%.2f\n",
		acc.Equity, acc.MarginUsed, acc.AvailableMargin, acc.UnrealizedPnL)

	positions, err := gw.GetPositions(ctx)
	if err != nil {
		log.Fatalf("positions: %v", err)
	}
	fmt.Printf("positions: %d\n", len(positions))
	for _, p := range positions {
		fmt.Printf("  %s %s qty=%v entry=%v upl=%v\n",
			p.InstrumentID, p.Side, p.Qty, p.AvgEntryPrice, p.UnrealizedPnL)
	}

	probe := *inst
	if probe == "" && len(positions) > 0 {
		probe = positions[0].InstrumentID
	}
	if probe == "" {
		fmt.Println("ok: нет инструмента для проверки меты, укажи -inst")
		return
	}

	meta, err := gw.GetInstrumentMeta(ctx, probe)
	if err != nil {
		log.Fatalf("instrument %s: %v", probe, err)
	}
	fmt.Printf("instrument %s: tick=%v minQty=%v maxDevTicks=%d\n",
		meta.ID, meta.TickSize, meta.MinQty, meta.MaxDeviationTicks)

	md := mds.NewClient(cfg, nil)
	q, err := md.GetQuote(ctx, probe)
	if err != nil {
		log.Fatalf("quote %s: %v", probe, err)
	}
	fmt.Printf("quote %s: bid=%v ask=%v last=%v\n", q.InstrumentID, q.Bid, q.Ask, q.Last)

	fmt.Println("ok: брокер отвечает, ключи рабочие")
}
