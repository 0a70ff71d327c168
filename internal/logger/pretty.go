// internal/logger/pretty.go
package logger

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Цвета уровней для консольного вывода
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// PrettyEncoder is the console encoder used when Config.Pretty is set:
// coloured levels, short timestamps, no caller.
func PrettyEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    colorLevelEncoder,
		EncodeTime:     shortTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	})
}

func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(levelLabel(level))
}

func levelLabel(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return colorCyan + "[DEBUG]" + colorReset
	case zapcore.InfoLevel:
		return colorGreen + "[INFO]" + colorReset
	case zapcore.WarnLevel:
		return colorYellow + "[WARN]" + colorReset
	case zapcore.ErrorLevel:
		return colorRed + "[ERROR]" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorRed + colorBold + "[" + level.CapitalString() + "]" + colorReset
	}
	return "[" + level.CapitalString() + "]"
}

func shortTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}
