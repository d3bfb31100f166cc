package logging

import (
	"os"
	"time"

	"go.uber.org/zap/zapcore"
)

// encodeTime writes RFC3339 timestamps. LOG_TIMESTAMP overrides the value
// for deterministic output in tests.
func encodeTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		enc.AppendString(override)
		return
	}
	enc.AppendString(t.Format(time.RFC3339))
}
