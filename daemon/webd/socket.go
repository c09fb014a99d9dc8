package webd

import (
	"encoding/json"

	"github.com/olahol/melody"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/types/fix"
)

type websocketAction string

const (
	websocketActionAccepted    websocketAction = "accepted"
	websocketActionPassThrough websocketAction = "pass"
)

type broadcast struct {
	Action websocketAction `json:"action"`
	Sample *fix.Sample     `json:"sample,omitempty"`
	Value  *ingest.Value   `json:"value,omitempty"`
}

// initMelody sets up the websocket handler. New connections get the
// last accepted fix of every source; then every accepted sample and
// pass-through value is broadcast as it happens.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Info("Websocket connected", "remote-addr", sess.Request.RemoteAddr)
		if s.sources == nil {
			return
		}
		for _, last := range s.sources.LastAccepted() {
			last := last
			b, _ := json.Marshal(broadcast{Action: websocketActionAccepted, Sample: &last})
			_ = sess.Write(b)
		}
	})

	// Incoming messages are not used. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote-addr", sess.Request.RemoteAddr, "bytes", len(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote-addr", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "error", e, "remote-addr", sess.Request.RemoteAddr)
	})

	if s.feeds == nil {
		return
	}
	accepted := make(chan fix.Sample, params.DefaultFeedBuffer)
	passed := make(chan ingest.Value, params.DefaultFeedBuffer)
	acceptedSub := s.feeds.Accepted.Subscribe(accepted)
	passedSub := s.feeds.PassThrough.Subscribe(passed)
	go func() {
		defer acceptedSub.Unsubscribe()
		defer passedSub.Unsubscribe()
		for {
			var bc broadcast
			select {
			case sample := <-accepted:
				bc = broadcast{Action: websocketActionAccepted, Sample: &sample}
			case v := <-passed:
				bc = broadcast{Action: websocketActionPassThrough, Value: &v}
			case err := <-acceptedSub.Err():
				if err != nil {
					s.logger.Error("Accepted feed subscription failed", "error", err)
				}
				return
			case err := <-passedSub.Err():
				if err != nil {
					s.logger.Error("Pass-through feed subscription failed", "error", err)
				}
				return
			}
			if s.melodyInstance.IsClosed() {
				return
			}
			b, err := json.Marshal(bc)
			if err != nil {
				s.logger.Error("Failed to marshal broadcast", "error", err)
				continue
			}
			if err := s.melodyInstance.Broadcast(b); err != nil {
				s.logger.Warn("Failed to broadcast", "action", bc.Action, "error", err)
			}
		}
	}()
}
