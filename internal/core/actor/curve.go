package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/effcurve2mqtt/internal/config"
	"github.com/berfenger/effcurve2mqtt/internal/core/curve"
	"github.com/berfenger/effcurve2mqtt/internal/core/domain"
	"github.com/berfenger/effcurve2mqtt/internal/core/events"
	"github.com/berfenger/effcurve2mqtt/internal/core/port"
	"github.com/berfenger/effcurve2mqtt/internal/core/service"
	"github.com/berfenger/effcurve2mqtt/internal/metrics"
	. "github.com/berfenger/effcurve2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	FIRST_PUBLISH_DELAY = 3 * time.Second
	FIRST_SAMPLE_DELAY  = 5 * time.Second
)

// CurveActor owns the aggregate. Every read and write of it happens inside
// this actor's mailbox loop, so a tick always runs to completion before the
// next message is handled.
type CurveActor struct {
	ActorWithStates
	scheduler    *scheduler.TimerScheduler
	stash        *Stash
	config       *config.Config
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription

	cache       *service.EntityStateCache
	sampler     port.EfficiencySampler
	persistence *service.PersistenceManager
	publisher   *service.CurvePublisher
	agg         *curve.Aggregate

	firstPublishDelay time.Duration
	firstSampleDelay  time.Duration
	samplePeriod      time.Duration
	saveTimeout       time.Duration
	now               func() time.Time

	// closed when the last started save returns, even after its timeout
	saveDone      chan struct{}
	cancelPublish scheduler.CancelFunc
	cancelSample  scheduler.CancelFunc

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Ticks carry the incarnation that armed them. After a restart the new
// incarnation ignores ticks left over from the previous one.
type curvePublishTick struct {
	owner *CurveActor
}

type curveSampleTick struct {
	owner *CurveActor
}

func NewCurveActor(config *config.Config, storage port.CurveStorage, eventStream *eventstream.EventStream,
	m *metrics.Metrics, logger *zap.Logger) *CurveActor {
	logger = ActorLogger(domain.ACTOR_ID_CURVE, logger)
	act := &CurveActor{
		config:            config,
		stash:             &Stash{},
		eventStream:       eventStream,
		cache:             service.NewEntityStateCache(time.Duration(config.Curve.MaxStateAgeSec) * time.Second),
		sampler:           service.NewDefaultEfficiencySampler(config.Curve, logger),
		persistence:       service.NewPersistenceManager(storage, time.Duration(config.Storage.SaveEverySeconds)*time.Second, logger),
		publisher:         service.NewCurvePublisher(config.Curve, storage),
		firstPublishDelay: FIRST_PUBLISH_DELAY,
		firstSampleDelay:  FIRST_SAMPLE_DELAY,
		samplePeriod:      time.Duration(config.Curve.SampleSeconds) * time.Second,
		saveTimeout:       time.Duration(config.Storage.SaveTimeoutMillis) * time.Millisecond,
		now:               time.Now,
		metrics:           m,
		logger:            logger,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CurveStartingState{
		actor: act,
	})
	return act
}

func (state *CurveActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CurveStartingState struct {
	ActorState
	actor *CurveActor
}

func (state CurveStartingState) Name() string {
	return "starting"
}

func (state CurveStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("curve@starting started")

		act := state.actor
		act.scheduler = scheduler.NewTimerScheduler(ctx)

		act.agg = act.persistence.Load(act.config.Curve.BinWidthWatt, act.config.Curve.MaxWatt)
		act.logger.Info("curve: aggregate loaded",
			zap.String("path", act.persistence.Storage().Info().PathAbs),
			zap.Int("discharge_points", len(curve.Points(act.agg.Discharge))),
			zap.Int("charge_points", len(curve.Points(act.agg.Charge))))

		act.subscribeToEntityStates(ctx)

		act.cancelPublish = act.scheduler.RequestOnce(act.firstPublishDelay, ctx.Self(), curvePublishTick{owner: act})
		act.cancelSample = act.scheduler.RequestOnce(act.firstSampleDelay, ctx.Self(), curveSampleTick{owner: act})

		act.Become(CurveRunningState{
			actor: act,
		})
		act.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("curve@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type CurveRunningState struct {
	ActorState
	actor *CurveActor
}

func (state CurveRunningState) Name() string {
	return "running"
}

func (state CurveRunningState) Receive(ctx actor.Context) {
	act := state.actor
	switch msg := ctx.Message().(type) {
	case domain.EntityStateEvent:
		act.cache.Update(msg)
	case curvePublishTick:
		if msg.owner != act {
			return
		}
		act.logger.Debug("curve@running first publish")
		act.publish()
	case curveSampleTick:
		if msg.owner != act {
			act.logger.Debug("curve@running: dropping tick of a previous incarnation")
			return
		}
		act.tick(ctx)
		act.cancelSample = act.scheduler.RequestOnce(act.samplePeriod, ctx.Self(), curveSampleTick{owner: act})
	case domain.GetCurvesRequest:
		discharge, charge := act.publisher.CurveStates(act.agg)
		ForRequest(msg).Respond(ctx, domain.GetCurvesResponse{
			Discharge: discharge,
			Charge:    charge,
		})
	case domain.ActorHealthRequest:
		act.logger.Debug("curve@running: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CURVE,
			Healthy: act.agg != nil,
			State:   fmt.Sprintf("%s (%d entities)", act.StateName(), act.cache.Len()),
		})
	case *actor.Stopping:
		act.shutdown()
	case *actor.Restarting:
		act.shutdown()
	default:
		act.logger.Debug("curve@running: unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CurveActor) subscribeToEntityStates(ctx actor.Context) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.subscription = state.eventStream.SubscribeWithPredicate(func(evt any) {
		root.Send(self, evt)
	}, func(evt any) bool {
		_, ok := evt.(domain.EntityStateEvent)
		return ok
	})
}

// tick samples every active channel, publishes the curves and saves them
// when due. A failing tick is dropped without affecting the next one.
func (state *CurveActor) tick(ctx actor.Context) {
	defer func() {
		if r := recover(); r != nil {
			state.metrics.TickFailed()
			state.logger.Warn("curve: tick failed", zap.Any("reason", r), zap.Stack("stack"))
		}
	}()
	state.metrics.Tick()

	now := state.now()
	for _, channel := range state.config.ActiveChannels() {
		result := state.sampler.Sample(channel, state.cache, state.agg, now)
		state.metrics.ObserveSample(channel.Label, result.Direction.String(), string(result.Outcome), result.Recorded())
	}

	state.publish()
	state.maybeSave(ctx, now)
}

func (state *CurveActor) publish() {
	defer func() {
		if r := recover(); r != nil {
			state.metrics.PublishFailed()
			state.logger.Warn("curve: publish failed", zap.Any("reason", r), zap.Stack("stack"))
		}
	}()
	discharge, charge := state.publisher.CurveStates(state.agg)
	for _, cs := range []domain.CurveState{discharge, charge} {
		state.metrics.CurvePublished(cs.Direction.String(), len(cs.Points), cs.Summary)
	}
	for _, ev := range events.CurveStatesToUpdateEvents(discharge, charge) {
		state.eventStream.Publish(ev)
	}
}

// maybeSave writes a snapshot of the aggregate with a bounded wait. The last
// save time only advances on success. A save that outlived its timeout keeps
// running, and no other save starts until it returns.
func (state *CurveActor) maybeSave(ctx actor.Context, now time.Time) {
	if !state.persistence.Due(now) {
		return
	}
	if state.saving() {
		state.logger.Debug("curve: previous save still running, skipping")
		return
	}
	snapshot := state.agg.Clone()
	storage := state.persistence.Storage()
	start := time.Now()

	done := make(chan struct{})
	state.saveDone = done
	task := NewBackgroundTaskErr(ctx, func() error {
		defer close(done)
		return storage.Save(snapshot)
	})
	if state.saveTimeout > 0 {
		task = task.WithTimeout(state.saveTimeout)
	}
	err := task.OnSuccess(func(Done) {
		state.persistence.MarkSaved(now)
	}).OnError(func(err error) {
		state.logger.Warn("curve: save failed", zap.Error(err))
	}).Run()

	state.metrics.Saved(err, time.Since(start))
}

func (state *CurveActor) saving() bool {
	if state.saveDone == nil {
		return false
	}
	select {
	case <-state.saveDone:
		return false
	default:
		return true
	}
}

func (state *CurveActor) shutdown() {
	if state.cancelPublish != nil {
		state.cancelPublish()
	}
	if state.cancelSample != nil {
		state.cancelSample()
	}
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	if state.agg == nil {
		return
	}
	if state.saving() {
		select {
		case <-state.saveDone:
		case <-time.After(state.saveTimeout):
			state.logger.Warn("curve: previous save still running, final save skipped")
			return
		}
	}
	start := time.Now()
	err := state.persistence.Save(state.agg, state.now())
	state.metrics.Saved(err, time.Since(start))
	if err == nil {
		state.logger.Info("curve: aggregate saved on stop")
	}
}
