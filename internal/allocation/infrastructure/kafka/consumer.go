package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/application"
	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
	"github.com/dmehra2102/Stock-Allocation-Service/pkg/idempotency"
	"github.com/dmehra2102/Stock-Allocation-Service/pkg/tracing"
)

// Consumer feeds externally-published batch quantity changes into the
// message bus, one unit of work per message. Messages are deduplicated by
// topic/partition/offset so a rebalance replay cannot shrink a batch twice.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	bus    *application.MessageBus
	newUoW application.UnitOfWorkFactory
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, bus *application.MessageBus, newUoW application.UnitOfWorkFactory, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		bus:    bus,
		newUoW: newUoW,
		idem:   idem,
		tracer: otel.Tracer("allocation-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumeBatchQuantityChanged")

		var ev struct {
			Ref string `json:"ref"`
			Qty int    `json:"qty"`
		}
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			span.End()
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		event := domain.BatchQuantityChanged{Ref: ev.Ref, Qty: ev.Qty}
		if _, err := c.bus.Handle(msgCtx, event, c.newUoW()); err != nil {
			c.log.Error("quantity change failed", "ref", ev.Ref, "err", err)
		} else {
			c.log.Info("batch quantity changed", "ref", ev.Ref, "qty", ev.Qty)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}
