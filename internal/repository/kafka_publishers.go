package repository

import (
	"context"

	"NoisyMarket/internal/domain/models"
	"NoisyMarket/internal/domain/repository"
	pkgkafka "NoisyMarket/pkg/kafka"
)

// Schema header values of the messages this service produces.
const (
	PathRecordSchema  = "path_record"
	CalibrationSchema = "calibration"
)

type kafkaProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher implements PathPublisher for Kafka. Records are keyed by run id so one run
// stays ordered on one partition.
type KafkaPublisher struct {
	producer kafkaProducer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

var _ repository.PathPublisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, r *models.SimulationResult) error {
	return p.PublishBatch(ctx, r.Records())
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, records []models.PathRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		msgs[i] = pkgkafka.Message{Key: []byte(r.RunID), Value: r, Schema: PathRecordSchema}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaCalibrationPublisher sends calibrations keyed by symbol.
type KafkaCalibrationPublisher struct {
	producer kafkaProducer
	topic    string
}

func NewKafkaCalibrationPublisher(producer *pkgkafka.Producer, topic string) *KafkaCalibrationPublisher {
	return &KafkaCalibrationPublisher{producer: producer, topic: topic}
}

var _ repository.CalibrationPublisher = (*KafkaCalibrationPublisher)(nil)

func (p *KafkaCalibrationPublisher) PublishCalibrations(ctx context.Context, cals []*models.Calibration) error {
	msgs := make([]pkgkafka.Message, 0, len(cals))
	for _, c := range cals {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(c.Symbol), Value: c, Schema: CalibrationSchema})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}
