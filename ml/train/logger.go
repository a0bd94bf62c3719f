package train

import (
	"k8s.io/klog/v2"
)

// Logger is the observability sink injected into the engine at
// construction. The engine never writes to a process-global log directly;
// callers that are happy with klog can leave the builder's default in
// place.
type Logger interface {
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
}

// klogLogger forwards to klog.
type klogLogger struct{}

func (klogLogger) Infof(format string, args ...any)    { klog.Infof(format, args...) }
func (klogLogger) Warningf(format string, args ...any) { klog.Warningf(format, args...) }
func (klogLogger) Errorf(format string, args ...any)   { klog.Errorf(format, args...) }

// DefaultLogger is the Logger used when none is injected.
var DefaultLogger Logger = klogLogger{}
