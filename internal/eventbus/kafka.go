package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const subjectHeader = "subject"

// Kafka implements Bus on franz-go. Each stream is one topic; the subject
// travels in a record header and the envelope ID is the record key. Durable
// subscriptions are consumer groups with manual commits.
type Kafka struct {
	seeds    []string
	producer *kgo.Client
	source   string
	logger   *slog.Logger
}

// NewKafka connects a producer to the given brokers. Consumers are created
// per subscription so each keeps its own group and offsets.
func NewKafka(brokers []string, source string, logger *slog.Logger) (*Kafka, error) {
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &Kafka{
		seeds:    brokers,
		producer: producer,
		source:   source,
		logger:   logger,
	}, nil
}

// EnsureTopics creates the stream topics if they do not exist yet.
func (k *Kafka) EnsureTopics(ctx context.Context, partitions int32) error {
	adm := kadm.NewClient(k.producer)
	for _, stream := range Streams {
		resp, err := adm.CreateTopics(ctx, partitions, 1, nil, stream.Name)
		if err != nil {
			return fmt.Errorf("create topic %s: %w", stream.Name, err)
		}
		for _, tr := range resp {
			if tr.Err != nil && !errors.Is(tr.Err, kerr.TopicAlreadyExists) {
				return fmt.Errorf("create topic %s: %w", tr.Topic, tr.Err)
			}
		}
	}
	return nil
}

func (k *Kafka) Publish(ctx context.Context, subject string, data []byte) error {
	stream, err := StreamFor(subject)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	env := Envelope{
		ID:            uuid.NewString(),
		Subject:       subject,
		Data:          data,
		Timestamp:     time.Now().UTC(),
		Source:        k.source,
		SchemaVersion: "1.0",
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope for %s: %w", subject, err)
	}

	record := &kgo.Record{
		Topic:   stream.Name,
		Key:     []byte(env.ID),
		Value:   payload,
		Headers: []kgo.RecordHeader{{Key: subjectHeader, Value: []byte(subject)}},
	}
	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", stream.Name, err)
	}
	return nil
}

func (k *Kafka) Subscribe(subject string, handler Handler, opts SubscribeOptions) (RunFunc, error) {
	stream, err := StreamFor(subject)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	group := opts.Durable
	if group == "" {
		group = opts.QueueGroup
	}
	if group == "" {
		// Ephemeral subscription: a unique group sees every message.
		group = "ephemeral-" + uuid.NewString()
	}

	d := newDispatcher(handler, k.Publish, k.logger)

	run := func(ctx context.Context) error {
		consumer, err := kgo.NewClient(
			kgo.SeedBrokers(k.seeds...),
			kgo.ConsumerGroup(group),
			kgo.ConsumeTopics(stream.Name),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
			kgo.DisableAutoCommit(),
			kgo.FetchMaxPartitionBytes(1<<20),
		)
		if err != nil {
			return fmt.Errorf("connect consumer group %s: %w", group, err)
		}
		defer consumer.Close()

		k.logger.Info("subscription started",
			"subject", subject,
			"stream", stream.Name,
			"group", group,
		)

		for {
			fetches := consumer.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return ctx.Err()
			}
			if errs := fetches.Errors(); len(errs) > 0 {
				for _, fe := range errs {
					if errors.Is(fe.Err, context.Canceled) {
						return ctx.Err()
					}
					k.logger.Error("fetch error",
						"topic", fe.Topic,
						"partition", fe.Partition,
						"error", fe.Err,
					)
				}
				continue
			}

			var records []*kgo.Record
			fetches.EachRecord(func(rec *kgo.Record) {
				records = append(records, rec)
			})
			for _, rec := range records {
				if err := k.consumeRecord(ctx, d, subject, rec); err != nil {
					return err
				}
				if err := consumer.CommitRecords(ctx, rec); err != nil {
					return fmt.Errorf("commit offset for %s: %w", stream.Name, err)
				}
			}
		}
	}
	return run, nil
}

func (k *Kafka) consumeRecord(ctx context.Context, d *dispatcher, subject string, rec *kgo.Record) error {
	recSubject := ""
	for _, h := range rec.Headers {
		if h.Key == subjectHeader {
			recSubject = string(h.Value)
			break
		}
	}
	// Records for sibling subjects on the same topic are committed untouched.
	if !matchSubject(subject, recSubject) {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(rec.Value, &env); err != nil {
		k.logger.Error("malformed envelope, skipping",
			"topic", rec.Topic,
			"key", string(rec.Key),
			"error", err,
		)
		return nil
	}
	return d.deliver(ctx, env)
}

// Health pings the brokers and reports latency.
func (k *Kafka) Health(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := k.producer.Ping(ctx)
	return time.Since(start), err
}

func (k *Kafka) Close() error {
	k.producer.Close()
	return nil
}
