package bitmaskd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// wireEvents maps the daemon's event names to bus events.
var wireEvents = map[string]vpn.EventName{
	"VPN_STATUS_CHANGED": vpn.EventStatusChanged,
	"BONAFIDE_AUTH_DONE": vpn.EventAuthDone,
}

// EventSource long-polls the daemon's event queue and publishes what it
// receives on a bus.
type EventSource struct {
	client *Client
	bus    *vpn.EventBus
	retry  time.Duration
	log    common.Logger
}

// NewEventSource creates a source publishing to bus. After a failed poll it
// waits retry before polling again.
func NewEventSource(client *Client, bus *vpn.EventBus, retry time.Duration) *EventSource {
	if retry <= 0 {
		retry = common.EventPollInterval
	}
	return &EventSource{
		client: client,
		bus:    bus,
		retry:  retry,
		log:    common.Component("events"),
	}
}

// Run registers for the VPN events and delivers them until ctx is done.
func (s *EventSource) Run(ctx context.Context) error {
	for {
		err := s.register(ctx)
		if err == nil {
			break
		}
		s.log.Warn("Registering for daemon events failed: %v", err)
		if !s.wait(ctx) {
			return nil
		}
	}
	s.log.Info("Listening for daemon events")

	for {
		ev, err := s.poll(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.log.Warn("Polling daemon events failed: %v", err)
			if !s.wait(ctx) {
				return nil
			}
			continue
		}

		name, ok := wireEvents[ev.name]
		if !ok {
			s.log.Debug("Ignoring event %s", ev.name)
			continue
		}
		n := s.bus.Publish(vpn.Event{Name: name, Content: ev.content})
		s.log.Debug("Delivered %s to %d subscribers", name, n)
	}
}

func (s *EventSource) register(ctx context.Context) error {
	names := make([]string, 0, len(wireEvents))
	for name := range wireEvents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.client.call(ctx, cmdRegister, nil, name); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

type wireEvent struct {
	name    string
	content []string
}

var errBadEvent = errors.New("malformed event")

// poll waits for the next event. The daemon answers [name, [content...]].
func (s *EventSource) poll(ctx context.Context) (wireEvent, error) {
	var raw []json.RawMessage
	if err := s.client.do(ctx, cmdPoll, &raw, 0); err != nil {
		return wireEvent{}, err
	}
	if len(raw) == 0 {
		return wireEvent{}, errBadEvent
	}

	var ev wireEvent
	if err := json.Unmarshal(raw[0], &ev.name); err != nil {
		return wireEvent{}, fmt.Errorf("%w: %v", errBadEvent, err)
	}
	if len(raw) < 2 {
		return ev, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw[1], &items); err != nil {
		return wireEvent{}, fmt.Errorf("%w: %v", errBadEvent, err)
	}
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			ev.content = append(ev.content, str)
			continue
		}
		ev.content = append(ev.content, string(item))
	}
	return ev, nil
}

func (s *EventSource) wait(ctx context.Context) bool {
	timer := time.NewTimer(s.retry)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
