package cache

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/constants"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/models"
	"github.com/redis/go-redis/v9"
)

// channelsFor lists every channel a transition is published to.
func channelsFor(ev *models.TransitionEvent) []string {
	channels := []string{
		constants.PubSubChannelTransitions,
		constants.PubSubChannelSession + ev.SessionID,
	}
	if ev.Terminal() {
		channels = append(channels, constants.PubSubChannelOutcomes)
	}
	return channels
}

// PublishTransition publishes to all matching channels in one round trip.
func (r *RedisCache) PublishTransition(ctx context.Context, ev *models.TransitionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	for _, channel := range channelsFor(ev) {
		pipe.Publish(ctx, channel, data)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// SubscribeTransitions subscribes to a channel, or a pattern if it contains
// '*'. The returned channel closes when ctx is done.
func (r *RedisCache) SubscribeTransitions(ctx context.Context, channel string) (<-chan *models.TransitionEvent, error) {
	var ps *redis.PubSub
	if strings.Contains(channel, "*") {
		ps = r.client.PSubscribe(ctx, channel)
	} else {
		ps = r.client.Subscribe(ctx, channel)
	}

	// Wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	r.logger.WithField("channel", channel).Info("subscribed to transitions")

	out := make(chan *models.TransitionEvent, 64)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.TransitionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.WithError(err).Warn("error unmarshaling transition")
					continue
				}
				select {
				case out <- &ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
