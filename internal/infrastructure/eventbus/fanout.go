package eventbus

import (
	"context"
	"errors"

	"github.com/resale-hub/claim-engine/internal/domain/event"
)

// Fanout publishes every event to all of its publishers and joins their
// errors. A failing publisher does not stop the others.
type Fanout []event.Publisher

func (f Fanout) Publish(ctx context.Context, e *event.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ event.Publisher = Fanout(nil)
