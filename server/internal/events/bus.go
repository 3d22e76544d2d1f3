package events

import (
	"github.com/asaskevich/EventBus"
	"github.com/marcopiovanello/dlp-bridge/server/internal"
)

const (
	TopicMetadataFetched = "metadata:fetched"
	TopicSessionFinished = "session:finished"
)

// Bus carries internal notifications between components. Handlers run
// synchronously on the publishing goroutine and must not publish.
type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

func (b *Bus) OnMetadataFetched(fn func(info *internal.MediaInfo)) error {
	return b.bus.Subscribe(TopicMetadataFetched, fn)
}

func (b *Bus) MetadataFetched(info *internal.MediaInfo) {
	if info == nil {
		return
	}
	b.bus.Publish(TopicMetadataFetched, info)
}

func (b *Bus) OnSessionFinished(fn func(rec internal.SessionRecord)) error {
	return b.bus.Subscribe(TopicSessionFinished, fn)
}

func (b *Bus) SessionFinished(rec internal.SessionRecord) {
	b.bus.Publish(TopicSessionFinished, rec)
}
