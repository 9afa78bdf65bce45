package model

import (
	"encoding/json"
	"fmt"

	"github.com/ilert/ilagent/pkg/config"
)

// MapEvent runs the consumer remapping state machine over a raw broker
// payload and returns the canonical event it produces, or false if the
// filter step dropped the message. Step order is significant: filter,
// then apiKey override, then field remap, then event-type value remap,
// then the alert-summary default.
func MapEvent(cfg *config.Config, payload []byte, topic string) (EventJSON, bool, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return EventJSON{}, false, fmt.Errorf("mapper: invalid payload json: %w", err)
	}

	var trans TransitionJSON
	if err := json.Unmarshal(payload, &trans); err != nil {
		return EventJSON{}, false, fmt.Errorf("mapper: invalid event transition json: %w", err)
	}

	// 1. filter
	if cfg.FilterKey != "" {
		val, ok := raw[cfg.FilterKey]
		if !ok {
			return EventJSON{}, false, nil
		}
		if cfg.FilterVal != "" {
			if s, isStr := val.(string); !isStr || s != cfg.FilterVal {
				return EventJSON{}, false, nil
			}
		}
	}

	// 2. apiKey override
	if cfg.EventKey != "" {
		key := cfg.EventKey
		trans.APIKey = &key
	}

	// 3. field remap
	if cfg.MapKeyAlertKey != "" {
		if s, ok := stringField(raw, cfg.MapKeyAlertKey); ok {
			trans.AlertKey = &s
		}
	}
	if cfg.MapKeySummary != "" {
		if s, ok := stringField(raw, cfg.MapKeySummary); ok {
			trans.Summary = &s
		}
	}

	var mappedEType string
	if cfg.MapKeyEType != "" {
		if s, ok := stringField(raw, cfg.MapKeyEType); ok {
			mappedEType = s
			trans.EventType = &s
		}
	}

	// 4. event-type value remap
	switch {
	case cfg.MapValETypeAlert != "" && cfg.MapValETypeAlert == mappedEType:
		t := string(EventTypeAlert)
		trans.EventType = &t
	case cfg.MapValETypeAccept != "" && cfg.MapValETypeAccept == mappedEType:
		t := string(EventTypeAccept)
		trans.EventType = &t
	case cfg.MapValETypeResolve != "" && cfg.MapValETypeResolve == mappedEType:
		t := string(EventTypeResolve)
		trans.EventType = &t
	}

	// 5. summary default for alerts
	eType := string(EventTypeAlert)
	if trans.EventType != nil {
		eType = *trans.EventType
	}
	if (trans.Summary == nil || *trans.Summary == "") && eType == string(EventTypeAlert) {
		s := fmt.Sprintf("New alert from %s", topic)
		trans.Summary = &s
	}

	return FromTransition(trans), true, nil
}

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// HeartbeatJSON is the MQTT/Kafka heartbeat payload shape: {"apiKey": "..."}.
type HeartbeatJSON struct {
	APIKey string `json:"apiKey"`
}

// ParseHeartbeatJSON parses a raw heartbeat payload, returning false on
// malformed input; the caller is responsible for logging and skipping it.
func ParseHeartbeatJSON(payload []byte) (HeartbeatJSON, bool) {
	var h HeartbeatJSON
	if err := json.Unmarshal(payload, &h); err != nil {
		return HeartbeatJSON{}, false
	}
	return h, true
}
