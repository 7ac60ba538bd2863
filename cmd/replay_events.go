package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/psds-microservice/ticket-feed-service/internal/config"
	"github.com/psds-microservice/ticket-feed-service/internal/database"
	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/kafka"
	"github.com/psds-microservice/ticket-feed-service/internal/service"
	"github.com/psds-microservice/ticket-feed-service/internal/updates"
	"github.com/spf13/cobra"
)

var replayEventsCmd = &cobra.Command{
	Use:   "replay-events",
	Short: "Re-emit all stored tickets as update events into the push topics",
	RunE:  runReplayEvents,
}

func init() {
	rootCmd.AddCommand(replayEventsCmd)
}

// runReplayEvents публикует каждый тикет в канал его статуса и в общий
// канал: подписчики без фильтра по статусу тоже должны увидеть событие.
func runReplayEvents(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return fmt.Errorf("replay-events: KAFKA_BROKERS is not set")
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tickets, err := service.NewTicketService(db, service.TagMatch(cfg.TagMatch)).ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	log.Printf("replay-events: found %d tickets", len(tickets))

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
	defer producer.Close()
	for i := range tickets {
		t := tickets[i]
		ev := updates.Event{Action: updates.ActionUpdate, Ticket: &t}
		producer.ProduceTicketEvent(ctx, string(t.Status), ev)
		producer.ProduceTicketEvent(ctx, filter.GeneralChannel, ev)
		if (i+1)%50 == 0 || i == len(tickets)-1 {
			log.Printf("replay-events: sent %d/%d", i+1, len(tickets))
		}
	}
	log.Printf("replay-events: done, re-emitted %d tickets", len(tickets))
	return nil
}
