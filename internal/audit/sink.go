package audit

import (
	"encoding/json"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Sink is the append-only logs.jsonl writer. Each Write call emits one
// JSON line immediately, so events appear in the order the
// orchestrator writes them during a bar.
type Sink struct {
	seq    Sequencer
	logger *zap.Logger
	closer io.Closer
}

// NewFileSink opens (creating if needed) path for append, rotating it
// through lumberjack once it exceeds maxSizeMB.
func NewFileSink(path string, maxSizeMB int) (*Sink, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		Compress:   false,
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:    "time",
		LevelKey:   "level",
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: zapcore.ISO8601TimeEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(lj), zapcore.InfoLevel)

	return &Sink{
		logger: zap.New(core),
		closer: lj,
	}, nil
}

// Write flushes event as one audit log line.
func (s *Sink) Write(event DomainEvent) error {
	ae := s.seq.Next(event)
	payload, err := json.Marshal(ae)
	if err != nil {
		return err
	}
	s.logger.Info("audit_event", zap.Any("payload", json.RawMessage(payload)))
	return nil
}

// Close flushes and releases the underlying log file.
func (s *Sink) Close() error {
	_ = s.logger.Sync()
	return s.closer.Close()
}
