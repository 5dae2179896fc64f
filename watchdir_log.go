package watchdir

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// log returns the session logger annotated with the directory of the node
func (n *node) log() *zap.Logger {
	return n.session.logger.With(zap.String("dir", n.path))
}

// MarshalLogObject lets events be logged with zap.Object.
func (e Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", e.Type.String())
	enc.AddString("file", e.File)
	if e.Stats != nil {
		enc.AddInt64("size", e.Stats.Size())
		enc.AddTime("mtime", e.Stats.ModTime())
		enc.AddBool("dir", e.Stats.IsDir())
	}
	if e.OldStats != nil {
		enc.AddInt64("old_size", e.OldStats.Size())
		enc.AddTime("old_mtime", e.OldStats.ModTime())
	}
	if e.Err != nil {
		enc.AddString("error", e.Err.Error())
	}
	return nil
}
