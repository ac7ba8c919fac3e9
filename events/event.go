package events

// Event is raised by the coordinator and delivered to every observer
type Event interface {
	IsEvent()
}

type Base struct {
}

func (b *Base) IsEvent() {}
