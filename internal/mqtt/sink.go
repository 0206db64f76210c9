package mqtt

import (
	"time"

	"github.com/sweeney/chamber-control/internal/logger"
)

// Annotator publishes controller annotations as events. It implements
// control.EventSink.
type Annotator struct {
	pub Publisher
	now func() time.Time
	log *logger.Logger
}

// NewAnnotator creates an annotator. now and log may be nil.
func NewAnnotator(pub Publisher, now func() time.Time, log *logger.Logger) *Annotator {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Annotator{pub: pub, now: now, log: log}
}

// RecordEvent publishes msg. Failures are logged, never returned: the
// controller must not depend on the broker.
func (a *Annotator) RecordEvent(msg string) {
	a.log.Infow("annotation", "msg", msg)
	if err := a.pub.Publish(NewEvent(a.now(), EventAnnotation, msg)); err != nil {
		a.log.Errorw("publish annotation failed", "msg", msg, "err", err)
	}
}
