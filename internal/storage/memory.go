package storage

import (
	"sync"

	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

const DefaultCapacity = 50

// ReadingBuffer holds the most recent readings for the dashboard chart.
// When full, the oldest reading is dropped.
type ReadingBuffer struct {
	mu       sync.RWMutex
	buffer   []monitor.SensorReading
	capacity int
}

func NewReadingBuffer(capacity int) *ReadingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ReadingBuffer{
		buffer:   make([]monitor.SensorReading, 0, capacity),
		capacity: capacity,
	}
}

func (s *ReadingBuffer) Add(r monitor.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) >= s.capacity {
		copy(s.buffer, s.buffer[1:])
		s.buffer = s.buffer[:len(s.buffer)-1]
	}
	s.buffer = append(s.buffer, r)
}

// Seed replaces the contents with the newest capacity readings of history.
func (s *ReadingBuffer) Seed(history []monitor.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(history) > s.capacity {
		history = history[len(history)-s.capacity:]
	}
	s.buffer = append(s.buffer[:0], history...)
}

// Latest returns the newest reading, if any.
func (s *ReadingBuffer) Latest() (monitor.SensorReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.buffer) == 0 {
		return monitor.SensorReading{}, false
	}
	return s.buffer[len(s.buffer)-1], true
}

// Recent returns up to count readings, oldest first.
func (s *ReadingBuffer) Recent(count int) []monitor.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || count > len(s.buffer) {
		count = len(s.buffer)
	}
	result := make([]monitor.SensorReading, count)
	copy(result, s.buffer[len(s.buffer)-count:])
	return result
}

func (s *ReadingBuffer) All() []monitor.SensorReading {
	return s.Recent(0)
}

func (s *ReadingBuffer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.buffer)
}
