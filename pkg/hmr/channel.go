package hmr

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/withgalaxy/devbridge/pkg/bundler"
	"github.com/withgalaxy/devbridge/pkg/watcher"
)

// Sender is one client connection as seen by the update channel.
type Sender interface {
	Send(msg Message) error
	Closed() bool
}

// Channel runs change cycles: update-start, at most one update or error,
// then update-done. Nothing is sent once the connection is closed.
type Channel struct {
	builder bundler.Builder
	addr    func() net.Addr
	logger  *zap.Logger
}

func NewChannel(builder bundler.Builder, addr func() net.Addr, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == nil {
		addr = func() net.Addr { return nil }
	}
	return &Channel{builder: builder, addr: addr, logger: logger}
}

// Run executes one change cycle for ev on sess, writing to out.
func (c *Channel) Run(ctx context.Context, sess *Session, out Sender, ev watcher.Event) {
	log := c.logger.With(zap.String("session", sess.ID), zap.String("file", ev.Path))

	c.send(out, updateStartMessage(), log)
	defer c.send(out, updateDoneMessage(), log)

	state, err := ev.Change.Await(ctx)
	if err != nil || !state.Exists {
		log.Debug("file removed, no update")
		return
	}

	msg, ok := c.update(ctx, sess, out, ev.Path, log)
	if ok {
		c.send(out, msg, log)
	}
}

func (c *Channel) update(ctx context.Context, sess *Session, out Sender, filename string, log *zap.Logger) (Message, bool) {
	batch, err := sess.ComputeUpdate(ctx, filename)
	if err != nil {
		return c.errorMessage(err, log), true
	}
	if batch == nil || out.Closed() {
		return Message{}, false
	}

	host, port := PackagerHost(c.addr())
	bundle, err := c.builder.BuildBundleForHMR(ctx, bundler.HMROptions{
		Entry:      sess.Entry,
		Platform:   sess.Platform,
		Resolution: batch.Resolution,
		Host:       host,
		Port:       port,
	})
	if err != nil {
		return c.errorMessage(err, log), true
	}
	if bundle.IsEmpty() || out.Closed() {
		return Message{}, false
	}

	body := UpdateBody{
		Modules:             make([]ModuleUpdate, 0, len(bundle.Modules)),
		InverseDependencies: batch.InverseDependencies,
		SourceURLs:          bundle.SourceURLs(),
		SourceMappingURLs:   bundle.SourceMappingURLs(),
	}
	for _, m := range bundle.Modules {
		body.Modules = append(body.Modules, ModuleUpdate{Name: m.Name, Code: m.Code})
	}
	msg, err := newMessage(MsgTypeUpdate, body)
	if err != nil {
		return c.errorMessage(err, log), true
	}

	log.Info("sending update",
		zap.Int("modules", len(body.Modules)),
		zap.Bool("structural", batch.Structural))
	return msg, true
}

func (c *Channel) errorMessage(err error, log *zap.Logger) Message {
	body, internal := ErrorBodyFor(err)
	if internal {
		log.Error("unexpected error during update", zap.Error(err))
	} else {
		log.Warn("update failed", zap.String("kind", string(body.Type)), zap.Error(err))
	}
	msg, encErr := newMessage(MsgTypeError, body)
	if encErr != nil {
		log.Error("encode error message", zap.Error(encErr))
		return Message{Type: MsgTypeError}
	}
	return msg
}

func (c *Channel) send(out Sender, msg Message, log *zap.Logger) {
	if out.Closed() {
		return
	}
	if err := out.Send(msg); err != nil {
		log.Debug("send failed", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}
