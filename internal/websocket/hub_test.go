package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func startHub(t *testing.T, initial ...Message) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(logger.WithComponent("websocket"))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, initial...)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg rawMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestInitialMessagesArriveFirst(t *testing.T) {
	history := []monitor.SensorReading{{Voltage: 230, Current: 2, Power: 500, Timestamp: time.Unix(1, 0)}}
	_, conn := startHub(t,
		Message{Type: TypeHistory, Payload: history},
		Message{Type: TypeLoads, Payload: control.DefaultLoadState()},
	)

	first := readMessage(t, conn)
	assert.Equal(t, TypeHistory, first.Type)
	var got []monitor.SensorReading
	require.NoError(t, json.Unmarshal(first.Payload, &got))
	require.Len(t, got, 1)
	assert.Equal(t, 230.0, got[0].Voltage)

	second := readMessage(t, conn)
	assert.Equal(t, TypeLoads, second.Type)
	assert.JSONEq(t, `{"load1":true,"load2":false,"autoMode":true}`, string(second.Payload))
}

func TestObserverBroadcasts(t *testing.T) {
	// the client's write pump starts only after registration, so the
	// initial message proves the hub knows the client
	hub, conn := startHub(t, Message{Type: TypeLoads, Payload: control.DefaultLoadState()})
	require.Equal(t, TypeLoads, readMessage(t, conn).Type)

	hub.AlertAppended(monitor.Alert{ID: "a1", Kind: monitor.VoltageLow, Severity: monitor.SeverityError})
	hub.AlertAcknowledged(monitor.Alert{ID: "a1", Acknowledged: true})
	hub.BroadcastReading(monitor.SensorReading{Voltage: 231})

	alert := readMessage(t, conn)
	assert.Equal(t, TypeAlert, alert.Type)
	assert.Contains(t, string(alert.Payload), `"kind":"voltage_low"`)

	ack := readMessage(t, conn)
	assert.Equal(t, TypeAck, ack.Type)
	assert.Contains(t, string(ack.Payload), `"acknowledged":true`)

	reading := readMessage(t, conn)
	assert.Equal(t, TypeReading, reading.Type)
	assert.Contains(t, string(reading.Payload), `"voltage":231`)
}

func TestEncode(t *testing.T) {
	data, err := Encode(TypeReading, monitor.SensorReading{Voltage: 1, Current: 2, Power: 3, Timestamp: time.Unix(0, 0).UTC()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"reading","payload":{"voltage":1,"current":2,"power":3,"timestamp":"1970-01-01T00:00:00Z"}}`, string(data))
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(logger.WithComponent("websocket"))

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.BroadcastReading(monitor.SensorReading{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked without a running hub")
	}
}
