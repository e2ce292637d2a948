package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/msahq/go-verification/core"
)

var (
	_ gocmd.Querier[GetVerificationMessage, core.VerificationRecord] = (*GetVerificationQuery)(nil)
	_ gocmd.Querier[ListInboundLogsMessage, core.InboundLogPage]     = (*ListInboundLogsQuery)(nil)
	_ RecordReader                                                   = StoreReader{}
	_ InboundLogReader                                               = StoreReader{}
)
