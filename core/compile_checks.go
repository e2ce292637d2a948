package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ RecordLocker     = (*MemoryRecordLocker)(nil)
	_ NotificationGate = defaultNotificationGate{}
	_ MetricsRecorder  = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
