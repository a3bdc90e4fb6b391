package extlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/ShipRelay/internal/broker/messages"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Logger ships audit records of carrier round trips to the external log
// topic. Publishing is best effort: a record that cannot be delivered is
// logged locally and dropped, the pipeline never waits on it.
type Logger struct {
	producer Publisher
	log      *slog.Logger
	timeout  time.Duration
}

func New(producer Publisher, log *slog.Logger) *Logger {
	return &Logger{producer: producer, log: log, timeout: 5 * time.Second}
}

func (l *Logger) Record(entry *messages.ExternalLog) {
	if l == nil || l.producer == nil {
		return
	}
	b, err := json.Marshal(entry)
	if err != nil {
		l.log.Error("external log marshal", "err", err, "trackingId", entry.TrackingID)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if err := l.producer.Publish(ctx, []byte(entry.TrackingID), b); err != nil {
			l.log.Error("external log publish", "err", err, "trackingId", entry.TrackingID)
		}
	}()
}
