package groupwatcher

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	kafka "github.com/segmentio/kafka-go"

	"github.com/openfabric/pipeliner/internal/models"
)

// Tracker receives confirmed group keys. Unknown and duplicate keys are
// fine, the tracker swallows them.
type Tracker interface {
	NotifyCreated(ctx context.Context, key models.GroupKey)
}

type groupEventDto struct {
	Key    string `json:"key"`
	Device string `json:"device"`
}

// Watcher consumes the group backend's creation events from kafka and
// feeds them to the pending tracker. Delivery is best effort end to end:
// a dropped or late message is covered by the reconciliation sweep.
type Watcher struct {
	msgReader *kafka.Reader
	deviceID  string
	tracker   Tracker
}

func New(deviceID string, addr string, topic string, tracker Tracker) *Watcher {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{addr},
		Topic:       topic,
		MaxBytes:    10 * 1024 * 1024,
		GroupID:     deviceID,
		StartOffset: kafka.LastOffset,
	})
	return &Watcher{
		msgReader: reader,
		deviceID:  deviceID,
		tracker:   tracker,
	}
}

func (w *Watcher) Run(ctx context.Context) error {
	for {
		msg, err := w.msgReader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			_ = w.msgReader.CommitMessages(ctx, msg)
			continue
		}
		event := groupEventDto{}
		err = json.Unmarshal(msg.Value, &event)
		if err != nil {
			log.Error().Err(err).Msg("failed to decode group event from json")
			_ = w.msgReader.CommitMessages(ctx, msg)
			continue
		}
		if event.Device != "" && event.Device != w.deviceID {
			_ = w.msgReader.CommitMessages(ctx, msg)
			continue
		}

		log.Debug().Msgf("group ready event for key %s", event.Key)
		w.tracker.NotifyCreated(ctx, models.GroupKey(event.Key))

		err = w.msgReader.CommitMessages(ctx, msg)
		if err != nil {
			log.Error().Err(err).Msg("failed to commit group event: it will be redelivered")
		}
	}
}

func (w *Watcher) Close() error {
	return w.msgReader.Close()
}
