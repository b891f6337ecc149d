package system

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the CLI logger. Diagnostics go to w (stderr when nil) in
// console form so they never mix with command output on stdout.
func NewLogger(verbose bool, w io.Writer) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	if !verbose {
		encCfg.CallerKey = ""
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), level)
	opts := []zap.Option{}
	if verbose {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...)
}

// ContextFields returns key/value pairs identifying a configured context, for
// SugaredLogger.With or Debugw calls. The server is omitted when empty.
func ContextFields(name, server string) []interface{} {
	if server == "" {
		return []interface{}{"context", name}
	}
	return []interface{}{"context", name, "server", server}
}
