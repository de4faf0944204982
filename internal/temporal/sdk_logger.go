package temporal

import (
	"fmt"
	"strings"
	"unicode"

	"go.temporal.io/sdk/log"

	"launchpad/internal/logging"
)

var (
	_ log.Logger     = sdkLogger{}
	_ log.WithLogger = sdkLogger{}
)

// sdkLogger routes Temporal SDK output into the launchpad logger under the
// "temporal" category. SDK keys such as TaskQueue become task_queue.
type sdkLogger struct {
	logger *logging.Logger
	fields map[string]string
}

// NewSDKLogger adapts logger for client.Options.Logger.
func NewSDKLogger(logger *logging.Logger) log.Logger {
	if logger == nil {
		logger = logging.Discard()
	}
	return sdkLogger{logger: logger.Named("temporal")}
}

func (l sdkLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, l.merge(keyvals))
}

func (l sdkLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, l.merge(keyvals))
}

func (l sdkLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, l.merge(keyvals))
}

func (l sdkLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, l.merge(keyvals))
}

// With binds keyvals to every later entry, as the SDK does for workflow and
// activity scoped loggers.
func (l sdkLogger) With(keyvals ...interface{}) log.Logger {
	return sdkLogger{logger: l.logger, fields: l.merge(keyvals)}
}

func (l sdkLogger) merge(keyvals []interface{}) map[string]string {
	fields := make(map[string]string, len(l.fields)+len(keyvals)/2+1)
	for key, value := range l.fields {
		fields[key] = value
	}
	fields[logging.SourceKey] = "temporal-sdk"
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 == len(keyvals) {
			fields["extra"] = render(keyvals[i])
			break
		}
		fields[snakeCase(fmt.Sprint(keyvals[i]))] = render(keyvals[i+1])
	}
	return fields
}

func render(value interface{}) string {
	if err, ok := value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(value)
}

// snakeCase turns SDK keys like WorkflowID or TaskQueue into workflow_id and
// task_queue. Keys already in lower case pass through.
func snakeCase(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			boundary := i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])))
			if boundary {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
