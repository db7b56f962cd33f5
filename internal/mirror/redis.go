package mirror

import (
	"context"
	"encoding/json"

	"github.com/nithinbasa/SmartGrid/internal/config"
	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/redis/go-redis/v9"
)

const (
	alertIndexKey  = "alerts"
	alertChannel   = "alerts"
	loadsKey       = "controls:loads"
	controlLogKey  = "logs:controls"
	controlLogType = "control"
)

func alertKey(id string) string {
	return "alerts:" + id
}

// RedisSink stores alerts as hashes indexed by a sorted set, and publishes
// every change on the alerts channel. Timestamps come from the redis
// server clock so every writer agrees on ordering.
type RedisSink struct {
	client    *redis.Client
	ownClient bool
}

// NewRedisSink wraps an existing client. The sink does not close it.
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// DialRedisSink opens a dedicated connection to the mirror store. The
// sink closes it.
func DialRedisSink(ctx context.Context, cfg config.Mirror) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.New().WithData(errors.ErrUnavailable, struct {
			Addr  string
			Error string
		}{
			Addr:  cfg.Addr,
			Error: err.Error(),
		})
	}
	return &RedisSink{client: client, ownClient: true}, nil
}

type alertMessage struct {
	Type  string        `json:"type"`
	Alert monitor.Alert `json:"alert"`
}

type controlLogEntry struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

func (s *RedisSink) PutAlert(ctx context.Context, a monitor.Alert) error {
	errFactory := errors.New()

	serverTime, err := s.client.Time(ctx).Result()
	if err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}
	a.Timestamp = serverTime

	payload, err := json.Marshal(alertMessage{Type: "alert", Alert: a})
	if err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}

	pipe := s.client.TxPipeline()
	queueAlert(ctx, pipe, a, serverTime.UnixMilli(), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}
	return nil
}

// queueAlert adds the alert writes to pipe. An acknowledgement that
// reached the store first is never cleared.
func queueAlert(ctx context.Context, pipe redis.Pipeliner, a monitor.Alert, ts int64, payload []byte) {
	key := alertKey(a.ID)
	pipe.HSet(ctx, key, alertFields(a, ts))
	if a.Acknowledged {
		pipe.HSet(ctx, key, "acknowledged", 1)
	} else {
		pipe.HSetNX(ctx, key, "acknowledged", 0)
	}
	pipe.ZAdd(ctx, alertIndexKey, redis.Z{Score: float64(ts), Member: a.ID})
	pipe.Publish(ctx, alertChannel, payload)
}

func (s *RedisSink) AckAlert(ctx context.Context, id string) error {
	errFactory := errors.New()

	payload, err := json.Marshal(struct {
		Type         string `json:"type"`
		ID           string `json:"id"`
		Acknowledged bool   `json:"acknowledged"`
	}{"ack", id, true})
	if err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, alertKey(id), "acknowledged", 1)
	pipe.Publish(ctx, alertChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}
	return nil
}

func (s *RedisSink) PutLoads(ctx context.Context, c control.Change) error {
	errFactory := errors.New()

	serverTime, err := s.client.Time(ctx).Result()
	if err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}

	state, err := json.Marshal(c.State)
	if err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}
	entry, err := json.Marshal(controlLogEntry{
		Action:    c.Action,
		Timestamp: serverTime.UnixMilli(),
		Type:      controlLogType,
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, loadsKey, state, 0)
	pipe.RPush(ctx, controlLogKey, entry)

	if _, err := pipe.Exec(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMirror, err)
	}
	return nil
}

// LoadState returns the switch state last written to the store. ok is
// false when nothing has been stored yet.
func (s *RedisSink) LoadState(ctx context.Context) (control.LoadState, bool, error) {
	data, err := s.client.Get(ctx, loadsKey).Bytes()
	if err == redis.Nil {
		return control.LoadState{}, false, nil
	}
	if err != nil {
		return control.LoadState{}, false, errors.New().Wrap(errors.ErrMirror, err)
	}

	state, err := decodeLoads(data)
	if err != nil {
		return control.LoadState{}, false, err
	}
	return state, true, nil
}

// decodeLoads fills fields missing from data with the defaults.
func decodeLoads(data []byte) (control.LoadState, error) {
	state := control.DefaultLoadState()
	if err := json.Unmarshal(data, &state); err != nil {
		return control.LoadState{}, errors.New().Wrap(errors.ErrMirror, err)
	}
	return state, nil
}

func (s *RedisSink) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

func alertFields(a monitor.Alert, ts int64) map[string]interface{} {
	return map[string]interface{}{
		"id":        a.ID,
		"kind":      string(a.Kind),
		"message":   a.Message,
		"severity":  string(a.Severity),
		"timestamp": ts,
	}
}
