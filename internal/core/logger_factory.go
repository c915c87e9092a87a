package core

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JupiterMetaLabs/ioninstr/internal/config"
	internalotel "github.com/JupiterMetaLabs/ioninstr/internal/otel"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapFactoryResult holds the constructed zap logger and its lifecycle handles.
type ZapFactoryResult struct {
	Logger       *zap.Logger
	AtomicLevel  zap.AtomicLevel
	OTELProvider *internalotel.LogProvider
}

// Sinks overrides the console writers. Nil fields mean os.Stdout / os.Stderr.
type Sinks struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewZapLogger builds a zap logger from cfg with console, file and OTEL cores.
func NewZapLogger(cfg config.Config, sinks Sinks) (*ZapFactoryResult, error) {
	// The atomic level drives every sink without its own level, so SetLevel
	// takes effect at runtime. A sink level pins that sink.
	atomicLevel := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	consoleLevel := sinkLevel(cfg.Console.Level, atomicLevel)
	fileLevel := sinkLevel(cfg.File.Level, atomicLevel)
	otelLevel := sinkLevel(cfg.OTEL.Level, atomicLevel)

	var otelProvider *internalotel.LogProvider
	var otelCore zapcore.Core
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		var err error
		otelProvider, err = internalotel.SetupLogProvider(cfg.OTEL, cfg.ServiceName, cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("otel setup failed: %w", err)
		}
		if lp := otelProvider.LoggerProvider(); lp != nil {
			otelCore = otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(lp))
		}
	}

	cores := make([]zapcore.Core, 0, 4)
	if cfg.Console.Enabled {
		for _, c := range buildConsoleCores(cfg, consoleLevel, sinks) {
			cores = append(cores, DropSystemFields(c))
		}
	}
	if cfg.File.Enabled && cfg.File.Path != "" {
		if c := buildFileCore(cfg, fileLevel); c != nil {
			cores = append(cores, DropSystemFields(c))
		}
	}
	if otelCore != nil {
		// The bridge reads the context from SentinelKey; the readable
		// trace_id and span_id strings stay as plain attributes.
		cores = append(cores, &leveledCore{Core: otelCore, level: otelLevel})
	}

	var core zapcore.Core
	switch len(cores) {
	case 0:
		core = zapcore.NewNopCore()
	case 1:
		core = cores[0]
	default:
		core = zapcore.NewTee(cores...)
	}

	opts := buildZapOptions(cfg)
	opts = append(opts, zap.WithFatalHook(noExitHook{}))

	return &ZapFactoryResult{
		Logger:       zap.New(core, opts...),
		AtomicLevel:  atomicLevel,
		OTELProvider: otelProvider,
	}, nil
}

// noExitHook lets Critical log at fatal level without terminating the process.
type noExitHook struct{}

func (noExitHook) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

func sinkLevel(override string, fallback zap.AtomicLevel) zapcore.LevelEnabler {
	if override == "" {
		return fallback
	}
	return ParseLevel(override)
}

func buildZapOptions(cfg config.Config) []zap.Option {
	opts := []zap.Option{zap.AddCallerSkip(1)}

	if cfg.Development {
		opts = append(opts,
			zap.Development(),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	}
	if cfg.ServiceName != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.ServiceName)))
	}
	if cfg.Version != "" {
		opts = append(opts, zap.Fields(zap.String("version", cfg.Version)))
	}
	return opts
}

func buildConsoleCores(cfg config.Config, level zapcore.LevelEnabler, sinks Sinks) []zapcore.Core {
	stdout, stderr := sinks.Stdout, sinks.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	encoder := buildConsoleEncoder(cfg)

	if !cfg.Console.ErrorsToStderr {
		return []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stdout)), level)}
	}

	stdoutLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return level.Enabled(lvl) && lvl < zapcore.WarnLevel
	})
	stderrLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return level.Enabled(lvl) && lvl >= zapcore.WarnLevel
	})
	return []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stdout)), stdoutLevel),
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stderr)), stderrLevel),
	}
}

func buildConsoleEncoder(cfg config.Config) zapcore.Encoder {
	switch cfg.Console.Format {
	case "systemd":
		return buildSystemdEncoder()
	case "pretty":
		return buildPrettyEncoder(cfg)
	case "json":
		return buildJSONEncoder()
	default:
		if cfg.Development {
			return buildPrettyEncoder(cfg)
		}
		return buildJSONEncoder()
	}
}

// syslogPriority maps zap levels to RFC 5424 priority prefixes.
func syslogPriority(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return "<7>"
	case zapcore.InfoLevel:
		return "<6>"
	case zapcore.WarnLevel:
		return "<4>"
	case zapcore.ErrorLevel:
		return "<3>"
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return "<2>"
	default:
		return "<6>"
	}
}

// buildSystemdEncoder writes "<N>LEVEL msg key=value"; journald strips the
// priority prefix and supplies the timestamp.
func buildSystemdEncoder() zapcore.Encoder {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	encoderCfg.EncodeTime = nil
	encoderCfg.CallerKey = ""
	encoderCfg.EncodeCaller = nil
	encoderCfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(syslogPriority(l) + l.CapitalString())
	}
	return zapcore.NewConsoleEncoder(encoderCfg)
}

func buildPrettyEncoder(cfg config.Config) zapcore.Encoder {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	if cfg.Console.Color {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(encoderCfg)
}

func buildJSONEncoder() zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "msg"
	encoderCfg.LevelKey = "level"
	encoderCfg.CallerKey = "caller"
	return zapcore.NewJSONEncoder(encoderCfg)
}

func buildFileCore(cfg config.Config, level zapcore.LevelEnabler) zapcore.Core {
	writer := config.NewFileWriter(cfg.File)
	if writer == nil {
		return nil
	}
	return zapcore.NewCore(buildJSONEncoder(), zapcore.AddSync(writer), level)
}

// ParseLevel converts a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal", "critical":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
