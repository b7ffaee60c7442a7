package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is replaced by logInit once flags are parsed.
var logger = zap.NewNop().Sugar()

func newLogger(verbose bool) *zap.SugaredLogger {

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		level.SetLevel(zap.DebugLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	)

	return zap.New(core, zap.AddCaller()).Sugar()
}

func logInit(conf config) {

	logger = newLogger(*conf.logVerbose)

	// no condition here, as you'll only see the message if
	// Verbose logging really is enabled!
	logger.Debugf("Verbose logging enabled")
}
