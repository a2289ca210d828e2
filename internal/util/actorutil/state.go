package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates drives an actor.Behavior with named state objects.
type ActorWithStates struct {
	Behavior actor.Behavior
	current  string
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func (s *ActorWithStates) Become(state ActorState) {
	s.current = state.Name()
	s.Behavior.Become(state.Receive)
}

// StateName returns the name of the last state entered.
func (s *ActorWithStates) StateName() string {
	return s.current
}
