package session

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// queueCore はログレコードをセッションのキューへ LogEvent として複製する
// zapcore.Core です。ジョブ実行中のログをそのままクライアントへ届けます。
type queueCore struct {
	zapcore.LevelEnabler
	enc   zapcore.Encoder
	queue *Queue
}

func newQueueCore(queue *Queue) *queueCore {
	// レベルと時刻は LogEvent 側のフィールドで運ぶため、本文のみを整形する
	encCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	return &queueCore{
		LevelEnabler: zapcore.InfoLevel,
		enc:          zapcore.NewConsoleEncoder(encCfg),
		queue:        queue,
	}
}

func (c *queueCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &queueCore{
		LevelEnabler: c.LevelEnabler,
		enc:          c.enc.Clone(),
		queue:        c.queue,
	}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *queueCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *queueCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	message := strings.TrimRight(buf.String(), "\n")
	buf.Free()

	c.queue.Emit(NewLogEvent(levelName(ent.Level), message, ent.Time))
	return nil
}

func (c *queueCore) Sync() error { return nil }

func levelName(level zapcore.Level) string {
	if level == zapcore.WarnLevel {
		// 原系列のログレベル表記に合わせる
		return "WARNING"
	}
	return level.CapitalString()
}

// NewSessionLogger は base の出力に加えて、全レコードをセッションキューへ
// LogEvent として複製するロガーを返します。ロガー自体がセッションに束縛
// されるため、ジョブ終了後のハンドラー解除は不要です。
func NewSessionLogger(base *zap.Logger, queue *Queue) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	core := newQueueCore(queue)
	return base.WithOptions(zap.WrapCore(func(existing zapcore.Core) zapcore.Core {
		return zapcore.NewTee(existing, core)
	}))
}
