package actor

import (
	"github.com/momentics/hioload-reactor/internal/logger"
	"github.com/sirupsen/logrus"
)

// PanicHandler receives the actor key and the value recovered from a
// panicking task.
type PanicHandler func(actor any, recovered any)

// Option customizes a scheduler.
type Option func(*options)

type options struct {
	log     *logrus.Entry
	onPanic PanicHandler
}

func buildOptions(opts []Option) *options {
	o := &options{log: logger.NewLogger("actor")}
	for _, opt := range opts {
		opt(o)
	}
	if o.onPanic == nil {
		log := o.log
		o.onPanic = func(actor any, recovered any) {
			log.WithField("actor", actor).Errorf("task panicked: %v", recovered)
		}
	}
	return o
}

// WithLogger replaces the default "actor" tagged logger.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithPanicHandler installs a callback for panicking tasks. The actor keeps
// draining after the callback returns.
func WithPanicHandler(fn PanicHandler) Option {
	return func(o *options) {
		o.onPanic = fn
	}
}
