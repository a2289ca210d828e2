package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/config"
	"github.com/berfenger/effcurve2mqtt/internal/core/domain"
	"github.com/berfenger/effcurve2mqtt/internal/core/events"
	"github.com/berfenger/effcurve2mqtt/internal/metrics"
	"github.com/berfenger/effcurve2mqtt/internal/mqtt"
	"github.com/berfenger/effcurve2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config       *config.Config
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	behavior     actor.Behavior
	stash        *actorutil.Stash
	client       *mqtt.MQTTClient
	metrics      *metrics.Metrics
	logger       *zap.Logger
	pending      int
	pendingErr   error
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		metrics:     m,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		state.subscribeToCurveEvents(ctx)

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.publishBridgeState(true)

		// subscribe to the upstream entity states
		entityIds := state.config.EntityIds()
		state.logger.Info("mqtt: subscribing to entity states", zap.Strings("entities", entityIds))
		state.client.SubscribeToEntityStates(entityIds, func(c pahomqtt.Client, m pahomqtt.Message) {
			parsed, err := state.client.ParseEntityState(m)
			if err != nil {
				return
			}
			state.eventStream.Publish(domain.EntityStateEvent{
				EntityId: parsed.EntityId,
				State:    parsed.State,
				Time:     time.Now(),
			})
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.String("topic", msg.Topic))
		state.publishMessages(ctx, []rawMessage{{topic: msg.Topic, message: msg.Payload, retain: msg.Retain}},
			actorutil.ForRequest(msg).ReplyTo(ctx), state.MessagePublishResultReceive)
	case domain.PublishSensorUpdateRequest:
		// receive message from event bus and publish to MQTT if needed
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain, (*actor.PID)(msg.ReplyTo()))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery")
		err := state.PublishHomeAssistantDiscovery(msg.Sensors)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		})
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// subscribeToCurveEvents forwards sensor updates published on the event
// stream to this actor's mailbox.
func (state *MQTTActor) subscribeToCurveEvents(ctx actor.Context) {
	if state.eventStream == nil || state.subscription != nil {
		return
	}
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.subscription = state.eventStream.SubscribeWithPredicate(func(evt any) {
		root.Send(self, domain.PublishSensorUpdateRequest{
			Event:  evt.(domain.SensorUpdateEvent),
			Retain: true,
		})
	}, func(evt any) bool {
		_, ok := evt.(domain.SensorUpdateEvent)
		return ok
	})
}

func (state *MQTTActor) event2MQTTMessages(event any) ([]rawMessage, error) {
	switch msg := event.(type) {
	case domain.CurveSensorUpdateEvent:
		attrs, err := json.Marshal(msg.Attributes)
		if err != nil {
			return nil, err
		}
		return []rawMessage{
			{
				topic:   state.client.SensorAttributesTopic(msg.Id),
				message: string(attrs),
				retain:  true,
			},
			{
				topic:   state.client.SensorStateTopic(msg.Id),
				message: formatFloat(msg.Value, msg.Decimals),
				retain:  true,
			},
		}, nil
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return []rawMessage{{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
			retain:  true,
		}}, nil
	default:
		return nil, nil
	}
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool, replyTo *actor.PID) {
	msgs, err := state.event2MQTTMessages(event)
	if err != nil {
		state.logger.Error("mqtt@publish: could not encode sensor update", zap.String("sensor", event.SensorId()), zap.Error(err))
		state.metrics.PublishFailed()
	}
	if len(msgs) == 0 {
		if replyTo != nil {
			ctx.Send(replyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			})
		}
		return
	}
	for i := range msgs {
		msgs[i].retain = msgs[i].retain || retain
	}
	state.publishMessages(ctx, msgs, replyTo, state.EventPublishResultReceive)
}

func (state *MQTTActor) publishMessages(ctx actor.Context, msgs []rawMessage, replyTo *actor.PID, next actor.ReceiveFunc) {
	state.pending = len(msgs)
	state.pendingErr = nil
	for _, msg := range msgs {
		state.logger.Sugar().Debugf("mqtt@publish: publish %s => %s", msg.topic, msg.message)
		state.client.Publish(msg.topic, msg.message, 1, msg.retain, func(err error) {
			ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
		}, 5*time.Second)
	}
	state.behavior.BecomeStacked(next)
}

// collectResult reports true once every pending publish has completed.
func (state *MQTTActor) collectResult(msg publishResult) bool {
	if msg.Error != nil {
		state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		state.metrics.PublishFailed()
		state.pendingErr = msg.Error
	}
	state.pending--
	return state.pending <= 0
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if !state.collectResult(msg) {
			return
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: state.pendingErr,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if !state.collectResult(msg) {
			return
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: state.pendingErr,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor) error {
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := state.client.HADiscoverySensorTopic(sensors[i])
		state.client.Publish(topic, payload, 0, true, func(err error) {
			if err != nil {
				state.metrics.PublishFailed()
			}
		}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) stop() {
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	if state.client != nil {
		state.logger.Debug("mqtt: disconnect")
		state.publishBridgeState(false)
		state.client.Disconnect(500 * time.Millisecond)
		state.client = nil
	}
}

// publishBridgeState publishes the availability without waiting for the broker ack.
func (state *MQTTActor) publishBridgeState(online bool) {
	for _, ev := range events.BridgeStateUpdateEvents(online) {
		msgs, _ := state.event2MQTTMessages(ev)
		for _, m := range msgs {
			state.client.Publish(m.topic, m.message, 0, m.retain, func(error) {}, 500*time.Millisecond)
		}
	}
}

func formatFloat(value float64, decimals uint) string {
	return fmt.Sprintf(fmt.Sprintf("%%.%df", decimals), value)
}

// Dummy actor. It renders every sensor update without a broker and publishes
// the rendered messages as TestPublishedMessage on the event stream.
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

type TestPublishedMessage struct {
	Topic   string
	Payload string
	Retain  bool
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribeToCurveEvents(ctx)
	case *actor.Stopping:
		if state.subscription != nil {
			state.eventStream.Unsubscribe(state.subscription)
			state.subscription = nil
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishSensorUpdateRequest:
		msgs, err := state.event2MQTTMessages(msg.Event)
		for _, m := range msgs {
			state.eventStream.Publish(TestPublishedMessage{Topic: m.topic, Payload: m.message, Retain: m.retain || msg.Retain})
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishSensorUpdateResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
	case domain.PublishDiscoveryRequest:
		for _, s := range msg.Sensors {
			payload, _ := json.Marshal(mqtt.GenericSensorToHADiscoveryMessage(state.client, s))
			state.eventStream.Publish(TestPublishedMessage{Topic: state.client.HADiscoverySensorTopic(s), Payload: string(payload), Retain: true})
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{})
	case domain.PublishMessageRequest:
		state.eventStream.Publish(TestPublishedMessage{Topic: msg.Topic, Payload: msg.Payload, Retain: msg.Retain})
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishMessageResponse{})
	}
}
