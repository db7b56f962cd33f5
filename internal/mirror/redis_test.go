package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPipe captures the commands queued on a pipeline. Only the
// commands the sink uses are implemented.
type recordingPipe struct {
	redis.Pipeliner
	cmds []string
}

func (p *recordingPipe) HSet(ctx context.Context, key string, _ ...interface{}) *redis.IntCmd {
	p.cmds = append(p.cmds, "hset "+key)
	return redis.NewIntCmd(ctx)
}

func (p *recordingPipe) HSetNX(ctx context.Context, key, field string, _ interface{}) *redis.BoolCmd {
	p.cmds = append(p.cmds, "hsetnx "+key+" "+field)
	return redis.NewBoolCmd(ctx)
}

func (p *recordingPipe) ZAdd(ctx context.Context, key string, _ ...redis.Z) *redis.IntCmd {
	p.cmds = append(p.cmds, "zadd "+key)
	return redis.NewIntCmd(ctx)
}

func (p *recordingPipe) Publish(ctx context.Context, channel string, _ interface{}) *redis.IntCmd {
	p.cmds = append(p.cmds, "publish "+channel)
	return redis.NewIntCmd(ctx)
}

func TestQueueAlertKeepsEarlierAcknowledgement(t *testing.T) {
	a := monitor.Alert{
		ID:        "a1",
		Kind:      monitor.VoltageLow,
		Severity:  monitor.SeverityError,
		Timestamp: time.Unix(1_700_000_000, 0),
	}

	pipe := &recordingPipe{}
	queueAlert(context.Background(), pipe, a, a.Timestamp.UnixMilli(), []byte(`{}`))

	assert.Equal(t, []string{
		"hset alerts:a1",
		"hsetnx alerts:a1 acknowledged",
		"zadd alerts",
		"publish alerts",
	}, pipe.cmds)
}

func TestQueueAlertWritesAcknowledged(t *testing.T) {
	a := monitor.Alert{ID: "a2", Kind: monitor.PowerHigh, Acknowledged: true}

	pipe := &recordingPipe{}
	queueAlert(context.Background(), pipe, a, 1, []byte(`{}`))

	assert.Equal(t, []string{
		"hset alerts:a2",
		"hset alerts:a2",
		"zadd alerts",
		"publish alerts",
	}, pipe.cmds)
}

func TestDecodeLoads(t *testing.T) {
	state, err := decodeLoads([]byte(`{"load1":false,"load2":true,"autoMode":false}`))
	require.NoError(t, err)
	assert.Equal(t, control.LoadState{Load1: false, Load2: true, AutoMode: false}, state)

	partial, err := decodeLoads([]byte(`{"load2":true}`))
	require.NoError(t, err)
	assert.Equal(t, control.LoadState{Load1: true, Load2: true, AutoMode: true}, partial)

	_, err = decodeLoads([]byte(`not json`))
	assert.Error(t, err)
}
