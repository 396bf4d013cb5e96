package sinks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quickdraw/server/logging"
)

const streamWriteWait = 10 * time.Second

// StreamSink fans events out to websocket subscribers. It powers the ops
// event tail; game clients never connect here and the sync protocol stays
// strictly polling.
type StreamSink struct {
	mu   sync.Mutex
	subs map[*streamSubscriber]struct{}
}

type streamSubscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewStreamSink() *StreamSink {
	return &StreamSink{subs: make(map[*streamSubscriber]struct{})}
}

// Attach registers a websocket connection; the sink owns it from here and
// closes it on write failure or sink shutdown.
func (s *StreamSink) Attach(conn *websocket.Conn) {
	sub := &streamSubscriber{conn: conn}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
}

func (s *StreamSink) Write(event logging.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	subs := make([]*streamSubscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		writeErr := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if writeErr != nil {
			s.drop(sub)
		}
	}
	return nil
}

func (s *StreamSink) drop(sub *streamSubscriber) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

func (s *StreamSink) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *StreamSink) Close(context.Context) error {
	s.mu.Lock()
	subs := make([]*streamSubscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[*streamSubscriber]struct{})
	s.mu.Unlock()

	for _, sub := range subs {
		sub.conn.Close()
	}
	return nil
}
