// partywatch joins a party from the terminal: it runs the sync engine
// against a live party service and prints queue, playback and balance
// changes as they happen. Handy for poking at the mock service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/httpapi"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/playback"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/push"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/session"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cmd := &cli.Command{
		Name:  "partywatch",
		Usage: "follow a party's queue, bids and playback live",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "party service base URL",
				Value: "http://localhost:3010",
			},
			&cli.StringFlag{
				Name:     "party",
				Usage:    "party id to join",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "user id to act as",
				Value: "partywatch",
			},
			&cli.StringFlag{
				Name:  "window",
				Usage: "sort window (all-time, day, week, month)",
				Value: party.WindowAllTime,
			},
			&cli.StringSliceFlag{
				Name:  "search",
				Usage: "search terms; prefix tags with #",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return watch(ctx, cmd, logger)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Fatal("partywatch failed", "err", err)
	}
}

func watch(ctx context.Context, cmd *cli.Command, logger *log.Logger) error {
	server := cmd.String("server")
	partyID := cmd.String("party")
	userID := cmd.String("user")

	api := httpapi.NewClient(server, userID)

	wsURL := "ws" + strings.TrimPrefix(server, "http") +
		"/ws?partyId=" + partyID + "&userId=" + userID
	channel := push.NewChannel(wsURL)
	go channel.Run(ctx)

	s := session.New(partyID, api, channel.Messages(), session.Listeners{
		QueueChanged: func(display []party.QueueEntry) {
			printQueue(display)
		},
		BalanceChanged: func(pence int64) {
			logger.Info("wallet updated", "balance", formatPence(pence))
		},
		PlaybackChanged: func(state string, ptr playback.Pointer) {
			logger.Info("playback", "state", state, "media", ptr.MediaID, "autoplay", ptr.Autoplay)
		},
		Ended: func() {
			logger.Warn("party ended")
		},
	})
	go s.Run(ctx)

	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	if w := cmd.String("window"); w != party.WindowAllTime {
		if err := s.SetWindow(ctx, w); err != nil {
			logger.Error("window unavailable", "window", w, "err", err)
		}
	}
	if terms := cmd.StringSlice("search"); len(terms) > 0 {
		if err := s.SetSearchTerms(ctx, terms); err != nil {
			return err
		}
	}

	logger.Info("watching party", "party", partyID, "server", server)
	<-ctx.Done()
	return nil
}

func printQueue(display []party.QueueEntry) {
	fmt.Println("--- queue ---")
	for i, e := range display {
		fmt.Printf("%2d. %-30s %-20s %8s (%d bids)\n",
			i+1, e.Media.Title, strings.Join(e.Media.Artists, ", "),
			formatPence(e.AggregateBidPence), e.BidCount)
	}
}

func formatPence(pence int64) string {
	return fmt.Sprintf("£%d.%02d", pence/100, pence%100)
}
