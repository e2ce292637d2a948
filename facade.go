package verification

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	job "github.com/goliatone/go-job"
	gocommand "github.com/msahq/go-verification/adapters/gocommand"
	gologger "github.com/msahq/go-verification/adapters/gologger"
	verificationcommand "github.com/msahq/go-verification/command"
	"github.com/msahq/go-verification/core"
	verificationquery "github.com/msahq/go-verification/query"
	"github.com/msahq/go-verification/webhooks"
	"github.com/msahq/go-verification/workers"
)

// Commands bundles the workflow mutation handlers registered with the
// dispatcher.
type Commands struct {
	AcceptScreening      *verificationcommand.AcceptScreeningCommand
	ProcessResult        *verificationcommand.ProcessResultCommand
	SubmitReview         *verificationcommand.SubmitReviewCommand
	DispatchNotification *verificationcommand.DispatchNotificationCommand
}

// Queries bundles the read-side handlers.
type Queries struct {
	GetVerification *verificationquery.GetVerificationQuery
	ListInboundLogs *verificationquery.ListInboundLogsQuery
}

// Facade is the assembled service surface: the workflow engine plus its
// command/query handlers and the outbound notifier that executes scheduled
// deliveries.
type Facade struct {
	engine   *core.Engine
	notifier *webhooks.Notifier
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	notifier *webhooks.Notifier
}

// WithNotifier overrides the default notifier, e.g. to inject a dispatcher
// with a custom transport.
func WithNotifier(notifier *webhooks.Notifier) FacadeOption {
	return func(options *facadeOptions) {
		options.notifier = notifier
	}
}

func NewFacade(engine *core.Engine, opts ...FacadeOption) (*Facade, error) {
	if engine == nil {
		return nil, fmt.Errorf("verification: engine is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	notifier := cfg.notifier
	if notifier == nil {
		dispatcher := webhooks.NewDispatcher(engine.Config().Delivery, engine.Logger())
		notifier = webhooks.NewNotifier(
			engine.RecordStore(),
			engine.ClientConfigStore(),
			dispatcher,
			engine.Logger(),
		)
	}

	reader := verificationquery.StoreReader{
		Records: engine.RecordStore(),
		Logs:    engine.WebhookLogStore(),
	}

	facade := &Facade{engine: engine, notifier: notifier}
	facade.commands = Commands{
		AcceptScreening:      verificationcommand.NewAcceptScreeningCommand(engine),
		ProcessResult:        verificationcommand.NewProcessResultCommand(engine),
		SubmitReview:         verificationcommand.NewSubmitReviewCommand(engine),
		DispatchNotification: verificationcommand.NewDispatchNotificationCommand(notifier),
	}
	facade.queries = Queries{
		GetVerification: verificationquery.NewGetVerificationQuery(reader),
		ListInboundLogs: verificationquery.NewListInboundLogsQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Engine() *core.Engine {
	if f == nil {
		return nil
	}
	return f.engine
}

func (f *Facade) Notifier() *webhooks.Notifier {
	if f == nil {
		return nil
	}
	return f.notifier
}

// Subscribe registers every command and query handler with the dispatcher
// through the shared registry adapter. The returned subscriptions stay live
// until unsubscribed; on any registration failure the already-made
// subscriptions are rolled back.
func (f *Facade) Subscribe(adapter *gocommand.RegistryAdapter) ([]commanddispatcher.Subscription, error) {
	if f == nil {
		return nil, fmt.Errorf("verification: facade is not configured")
	}
	if adapter == nil {
		adapter = gocommand.NewRegistryAdapter(nil)
	}

	var subscriptions []commanddispatcher.Subscription
	rollback := func() {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
	}

	commandSubs := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.AcceptScreening)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.ProcessResult)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.SubmitReview)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.DispatchNotification)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(adapter, f.queries.GetVerification)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(adapter, f.queries.ListInboundLogs)
		},
	}
	for _, register := range commandSubs {
		subscription, err := register()
		if err != nil {
			rollback()
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, nil
}

// JobLoggers bridges the engine logger to the task queue's logging
// contracts, for callers assembling go-job queue components around this
// facade.
func (f *Facade) JobLoggers() (job.LoggerProvider, job.Logger) {
	var logger core.Logger
	if f != nil && f.engine != nil {
		logger = f.engine.Logger()
	}
	_, _, jobProvider, jobLogger := gologger.ResolveForJob("", nil, logger)
	return jobProvider, jobLogger
}

// Runner builds the queue consumer for this facade's engine and notifier.
// Callers own the dequeuer and the Run lifecycle.
func (f *Facade) Runner(dequeuer core.JobDequeuer, opts ...workers.RunnerOption) (*workers.Runner, error) {
	if f == nil || f.engine == nil {
		return nil, fmt.Errorf("verification: facade is not configured")
	}
	runnerOpts := append([]workers.RunnerOption{
		workers.WithRunnerLogger(f.engine.Logger()),
	}, opts...)
	return workers.NewRunner(dequeuer, f.engine, f.notifier, runnerOpts...)
}
