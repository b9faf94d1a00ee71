package fetcher

// Observer is the canonical set of subscription callbacks.
type Observer struct {
	Next     func(result *ExecutionResult)
	Complete func()
	Error    func(err error)
}

// Handler is the method form of an Observer.
type Handler interface {
	Next(result *ExecutionResult)
	Complete()
	Error(err error)
}

// ObserverArg is accepted by Subscribe: an Observer, Callbacks(...) or FromHandler(...).
type ObserverArg interface {
	toObserver() Observer
}

func (o Observer) toObserver() Observer {
	return o
}

type callbacks struct {
	next     func(result *ExecutionResult)
	complete func()
	err      func(err error)
}

func (c callbacks) toObserver() Observer {
	return Observer{
		Next:     c.next,
		Complete: c.complete,
		Error:    c.err,
	}
}

// Callbacks builds an ObserverArg from positional callbacks, any of which may be nil.
func Callbacks(next func(result *ExecutionResult), complete func(), err func(err error)) ObserverArg {
	return callbacks{next: next, complete: complete, err: err}
}

type handlerArg struct {
	handler Handler
}

func (h handlerArg) toObserver() Observer {
	if h.handler == nil {
		return Observer{}
	}
	return Observer{
		Next:     h.handler.Next,
		Complete: h.handler.Complete,
		Error:    h.handler.Error,
	}
}

func FromHandler(handler Handler) ObserverArg {
	return handlerArg{handler: handler}
}

// normalizeObserver resolves arg into an Observer whose callbacks are never nil.
func normalizeObserver(arg ObserverArg) Observer {
	var observer Observer
	if arg != nil {
		observer = arg.toObserver()
	}
	if observer.Next == nil {
		observer.Next = func(*ExecutionResult) {}
	}
	if observer.Complete == nil {
		observer.Complete = func() {}
	}
	if observer.Error == nil {
		observer.Error = func(error) {}
	}
	return observer
}
