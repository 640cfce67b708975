package threadpool

import "mini-web-server/internal/logger"

// Option configures a ThreadPool.
type Option func(*options)

type options struct {
	log           *logger.Logger
	recoverPanics bool
	observers     []Observer
}

func defaultOptions() options {
	return options{
		log: logger.Default,
	}
}

// WithLogger sets the logger used for pool and worker messages.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithPanicRecovery selects the fault policy. When enabled a panicking job
// is logged and its worker keeps serving; when disabled (the default) the
// worker retires and Close reports the panic.
func WithPanicRecovery(enabled bool) Option {
	return func(o *options) {
		o.recoverPanics = enabled
	}
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func (o options) observer() Observer {
	switch len(o.observers) {
	case 0:
		return NopObserver{}
	case 1:
		return o.observers[0]
	default:
		return multiObserver(o.observers)
	}
}
