package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AcceptScreeningMessage]      = (*AcceptScreeningCommand)(nil)
	_ gocmd.Commander[ProcessResultMessage]        = (*ProcessResultCommand)(nil)
	_ gocmd.Commander[SubmitReviewMessage]         = (*SubmitReviewCommand)(nil)
	_ gocmd.Commander[DispatchNotificationMessage] = (*DispatchNotificationCommand)(nil)
)
