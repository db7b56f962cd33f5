package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/config"
	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/metrics"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// RemoteSource follows a redis-backed feed: the current reading is kept
// at a key, every update is published on a channel, and history is a list
// of JSON payloads.
type RemoteSource struct {
	client *redis.Client
	cfg    config.Remote
	logger logger.Logger
	now    func() time.Time
	pubsub *redis.PubSub
}

// payload is the wire form; timestamp is unix milliseconds.
type payload struct {
	Voltage   *float64 `json:"voltage"`
	Current   *float64 `json:"current"`
	Power     *float64 `json:"power"`
	Timestamp int64    `json:"timestamp"`
}

func NewRemoteSource(cfg config.Remote, log logger.Logger) (*RemoteSource, error) {
	errFactory := errors.New()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errFactory.WithData(errors.ErrSourceUnavailable, struct {
			Addr  string
			Error string
		}{
			Addr:  cfg.Addr,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("addr", cfg.Addr).
		Str("channel", cfg.ReadingChannel).
		Msg("Connected to remote reading feed")

	return &RemoteSource{
		client: client,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}, nil
}

func (s *RemoteSource) Name() string { return NameRemote }

// Client exposes the connection so the mirror can share it.
func (s *RemoteSource) Client() *redis.Client {
	return s.client
}

func (s *RemoteSource) Start(ctx context.Context) (<-chan monitor.SensorReading, error) {
	errFactory := errors.New()

	pubsub := s.client.Subscribe(ctx, s.cfg.ReadingChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errFactory.Wrap(errors.ErrSourceSubscription, err)
	}
	s.pubsub = pubsub

	out := make(chan monitor.SensorReading, readingBuffer)

	// The stored value is the reading the dashboard would show before
	// the next publish arrives.
	initial, err := s.client.Get(ctx, s.cfg.ReadingKey).Bytes()
	switch {
	case err == redis.Nil:
	case err != nil:
		s.logger.Warn().Err(err).Str("key", s.cfg.ReadingKey).Msg("Failed to read current reading")
	default:
		if r, err := decodeReading(initial, s.now); err == nil {
			out <- r
		} else {
			s.reject(err)
		}
	}

	go s.relay(ctx, pubsub.Channel(), out)

	return out, nil
}

// relay forwards valid payloads until ctx is done or the subscription closes.
func (s *RemoteSource) relay(ctx context.Context, in <-chan *redis.Message, out chan<- monitor.SensorReading) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				s.logger.Warn().Msg("Remote feed subscription closed")
				return
			}
			r, err := decodeReading([]byte(msg.Payload), s.now)
			if err != nil {
				s.reject(err)
				continue
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *RemoteSource) History(ctx context.Context, n int) ([]monitor.SensorReading, error) {
	if n <= 0 {
		return nil, nil
	}

	raw, err := s.client.LRange(ctx, s.cfg.HistoryKey, int64(-n), -1).Result()
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrSourceUnavailable, err)
	}

	history := make([]monitor.SensorReading, 0, len(raw))
	for _, item := range raw {
		r, err := decodeReading([]byte(item), s.now)
		if err != nil {
			s.reject(err)
			continue
		}
		history = append(history, r)
	}
	return history, nil
}

func (s *RemoteSource) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	if err := s.client.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

func (s *RemoteSource) reject(err error) {
	metrics.ReadingsRejected.WithLabelValues(NameRemote).Inc()
	s.logger.Warn().Err(err).Msg("Rejected remote reading")
}

// decodeReading parses one payload. A missing timestamp is stamped with
// the arrival time.
func decodeReading(data []byte, now func() time.Time) (monitor.SensorReading, error) {
	errFactory := errors.New()

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return monitor.SensorReading{}, errFactory.Wrap(errors.ErrInvalidReading, err)
	}
	if p.Voltage == nil || p.Current == nil || p.Power == nil {
		return monitor.SensorReading{}, errFactory.WithData(errors.ErrInvalidReading, "missing field")
	}

	ts := now()
	if p.Timestamp > 0 {
		ts = time.UnixMilli(p.Timestamp)
	}

	r := monitor.SensorReading{
		Voltage:   *p.Voltage,
		Current:   *p.Current,
		Power:     *p.Power,
		Timestamp: ts,
	}
	if err := r.Validate(); err != nil {
		return monitor.SensorReading{}, err
	}
	return r, nil
}
