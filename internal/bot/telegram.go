package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/service"

	tele "gopkg.in/telebot.v3"
)

func StartTelegramBot(priceService *service.PriceService, statusService *service.StatusService) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /price BTC\nSupported: %s", strings.Join(domain.SupportedSymbols, ", ")))
		}
		symbol := strings.ToUpper(args[0])
		if !domain.IsSupportedSymbol(symbol) {
			return c.Send(fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, strings.Join(domain.SupportedSymbols, ", ")))
		}
		snapshot, err := priceService.GetCurrentPrice(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching price for %s: %v", symbol, err))
		}
		msg := fmt.Sprintf(
			"%s\nPrice: $%.2f\n24h Change: %.2f%%\n24h Volume: $%.0f",
			symbol, snapshot.PriceUSD, snapshot.Change24hPct, snapshot.Volume24h,
		)
		return c.Send(msg)
	})

	b.Handle("/status", func(c tele.Context) error {
		if statusService == nil {
			return c.Send("Status unavailable")
		}
		status, err := statusService.Status(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching status: %v", err))
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Uptime: %ds\n", status.UptimeSeconds))
		if status.BackfillBusy {
			sb.WriteString("Backfill: running\n")
		}
		for _, run := range status.Collectors {
			sb.WriteString(fmt.Sprintf("%s: %s (%d items, %s)\n",
				run.Collector, run.Status, run.Items, run.StartedAt.Format("15:04 MST")))
		}
		if len(status.Gaps) > 0 {
			sb.WriteString(fmt.Sprintf("Gaps: %d windows with missing rows\n", len(status.Gaps)))
		}
		if len(status.Anomalies) > 0 {
			sb.WriteString(fmt.Sprintf("Anomalies flagged: %d\n", len(status.Anomalies)))
		}
		return c.Send(sb.String())
	})

	log.Println("Telegram bot started")
	go b.Start()
}
