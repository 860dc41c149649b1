package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/services/markov"
	pkgkafka "NoisyMarket/pkg/kafka"
	applogger "NoisyMarket/pkg/logger"
)

// KafkaCalibrationHandler stores calibrations published by other instances.
type KafkaCalibrationHandler struct {
	topic   string
	store   domrepo.CalibrationStore
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewKafkaCalibrationHandler(topic string, store domrepo.CalibrationStore, metrics domrepo.Metrics, log *applogger.Logger) *KafkaCalibrationHandler {
	if log == nil {
		log = applogger.Nop()
	}
	return &KafkaCalibrationHandler{topic: topic, store: store, metrics: metrics, log: log}
}

var _ pkgkafka.MessageHandler = (*KafkaCalibrationHandler)(nil)

func (h *KafkaCalibrationHandler) Topic() string { return h.topic }

// Handle decodes and validates one calibration. Malformed payloads are permanent failures and go
// straight to the dead letter topic; store errors are retried.
func (h *KafkaCalibrationHandler) Handle(ctx context.Context, data []byte) error {
	var cal models.Calibration
	if err := json.Unmarshal(data, &cal); err != nil {
		h.metrics.RecordError("calibration_decode")
		return pkgkafka.Permanent(fmt.Errorf("decode calibration: %w", err))
	}
	if err := ValidateCalibration(&cal); err != nil {
		h.metrics.RecordError("calibration_invalid")
		return pkgkafka.Permanent(err)
	}
	if err := h.store.Save(ctx, &cal); err != nil {
		return fmt.Errorf("save %s: %w", cal.Symbol, err)
	}
	h.metrics.RecordCalibration(cal.Symbol)
	h.log.Debug("calibration received", applogger.String("symbol", cal.Symbol))
	return nil
}

// ValidateCalibration checks that a calibration can drive a simulator.
func ValidateCalibration(cal *models.Calibration) error {
	cal.Symbol = strings.ToUpper(strings.TrimSpace(cal.Symbol))
	if cal.Symbol == "" {
		return &markov.ConfigurationError{Field: "symbol", Reason: "required"}
	}
	if _, err := cal.Matrix(); err != nil {
		return err
	}
	if _, err := markov.NewLevyStable(cal.Levy); err != nil {
		return err
	}
	var errs []error
	if cal.Gaussian != nil {
		if _, err := markov.NewGaussian(*cal.Gaussian); err != nil {
			errs = append(errs, err)
		}
	}
	if cal.Uniform != nil {
		if _, err := markov.NewUniform(*cal.Uniform); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
