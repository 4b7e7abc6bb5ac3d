package event

import (
	"context"
	"log"
)

type Publisher interface {
	PublishSettingsSynced(ctx context.Context, userID string, lastModified int64) error
	PublishStockSyncCompleted(ctx context.Context, completed, failed []string, success bool) error

	// Close closes the publisher and releases resources
	Close() error
}

type EventPublisher struct {
	rabbitMQ *RabbitMQClient
	enabled  bool
}

func NewEventPublisher(rabbitURI string) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{
			rabbitMQ: nil,
			enabled:  false,
		}, nil
	}

	client, err := NewRabbitMQClient(rabbitURI)
	if err != nil {
		return nil, err
	}

	if err := client.setupExchanges(); err != nil {
		client.Close()
		return nil, err
	}

	return &EventPublisher{
		rabbitMQ: client,
		enabled:  true,
	}, nil
}

func (p *EventPublisher) PublishSettingsSynced(ctx context.Context, userID string, lastModified int64) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping SettingsSynced")
		return nil
	}

	event := NewSettingsSyncedEvent(userID, lastModified)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	err = p.rabbitMQ.PublishEvent("etl-events", string(SettingsSynced), eventData)
	if err != nil {
		return err
	}

	log.Printf("Published SettingsSynced event for user ID: %s", userID)
	return nil
}

func (p *EventPublisher) PublishStockSyncCompleted(ctx context.Context, completed, failed []string, success bool) error {
	if !p.enabled {
		log.Println("Event publishing is disabled, skipping StockSyncCompleted")
		return nil
	}

	event := NewStockSyncCompletedEvent(completed, failed, success)

	eventData, err := event.ToJSON()
	if err != nil {
		return err
	}

	err = p.rabbitMQ.PublishEvent("etl-events", string(StockSyncCompleted), eventData)
	if err != nil {
		return err
	}

	log.Printf("Published StockSyncCompleted event: %d completed, %d failed", len(completed), len(failed))
	return nil
}

// Close releases resources
func (p *EventPublisher) Close() error {
	if !p.enabled || p.rabbitMQ == nil {
		return nil
	}

	return p.rabbitMQ.Close()
}
