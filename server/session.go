package server

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ftpd/ftpd/internal/command"
	"github.com/ftpd/ftpd/internal/session"
	"github.com/ftpd/ftpd/internal/token"
	"github.com/ftpd/ftpd/internal/transport"
	"github.com/ftpd/ftpd/internal/workpool"
)

// connHandler owns one control connection: it reads requests, lexes
// and parses them, and submits the result as a task to the shared
// worker pool. It never runs handler logic itself; that always
// happens inside the task the pool runs, so a slow RETR never blocks
// this goroutine from noticing a concurrent ABOR.
type connHandler struct {
	srv    *Server
	conn   net.Conn
	id     session.ID
	connID string // uuid correlating this connection's log lines
	logger *slog.Logger

	ctx  ClientContext
	rnfr string // pending RNFR source path, cleared by RNTO or a new RNFR

	dataConn        net.Conn
	passiveListener net.Listener
}

func newConnHandler(s *Server, conn net.Conn, id session.ID) *connHandler {
	connID := uuid.NewString()
	return &connHandler{
		srv:    s,
		conn:   conn,
		id:     id,
		connID: connID,
		logger: s.logger.With("conn_id", connID, "remote_addr", conn.RemoteAddr().String()),
	}
}

func (ch *connHandler) reply(code uint16, payload string) {
	transport.SendReply(ch.conn, transport.Reply{Code: code, Payload: payload})
}

// serve drives the connection until QUIT, a read error, or the session
// is marked Invalid.
func (ch *connHandler) serve() {
	ch.logger.Info("control connection opened")
	defer ch.logger.Info("control connection closed")
	defer ch.closeData()
	defer func() {
		if ch.ctx != nil {
			ch.ctx.Close()
		}
	}()

	ch.reply(220, ch.srv.welcomeMessage)

	br := bufio.NewReader(ch.conn)
	cmdCh := make(chan command.Command, 4)
	doneReading := make(chan struct{})

	go func() {
		defer close(cmdCh)
		defer close(doneReading)
		for {
			if ch.srv.maxIdleTime > 0 {
				ch.conn.SetReadDeadline(time.Now().Add(ch.srv.maxIdleTime))
			}
			req, err := transport.RecvRequest(br)
			if err != nil {
				return
			}
			toks := token.Lex(req.Payload + "\r\n")
			cmdCh <- command.Parse(toks)
		}
	}()

	for cmd := range cmdCh {
		switch cmd.Form {
		case command.Invalid:
			if cmd.Kind == command.KindPort {
				ch.reply(501, "Syntax error in parameters or arguments.")
			} else {
				ch.reply(500, "Syntax error, command unrecognized.")
			}
			continue
		case command.Unsupported:
			ch.reply(502, "Command not implemented.")
			continue
		}

		if cmd.Kind == command.KindAbor {
			// No task is running between reads of cmdCh (see below); a
			// standalone ABOR with nothing in flight is a no-op success.
			ch.reply(225, "No transfer in progress.")
			continue
		}

		if !ch.runTask(cmd, cmdCh) {
			return
		}

		if cmd.Kind == command.KindQuit {
			return
		}

		sess, err := ch.srv.store.Get(ch.id)
		if err == nil && sess.State == session.Invalid {
			ch.reply(421, "Service not available, closing control connection.")
			return
		}
	}
	<-doneReading
}

// runTask submits cmd to the pool and blocks until it finishes, but keeps
// draining cmdCh so an ABOR arriving mid-transfer can cancel the task's
// context instead of queueing behind it. Returns false if the control
// connection should close.
func (ch *connHandler) runTask(cmd command.Command, cmdCh <-chan command.Command) bool {
	done := make(chan struct{})
	taskID := ch.srv.nextTaskID.Add(1)
	start := time.Now()

	ok := ch.srv.pool.Submit(workpool.Task{
		ID: taskID,
		Run: func(taskCtx context.Context) {
			defer close(done)
			ch.dispatch(taskCtx, cmd)
			if ch.srv.metricsCollector != nil {
				ch.srv.metricsCollector.RecordCommand(cmd.Kind.String(), taskCtx.Err() == nil, time.Since(start))
			}
		},
	})
	if !ok {
		ch.reply(421, "Service not available, closing control connection.")
		return false
	}

	for {
		select {
		case <-done:
			return true
		case next, more := <-cmdCh:
			if !more {
				<-done
				return false
			}
			if next.Form == command.Supported && next.Kind == command.KindAbor {
				ch.srv.pool.Cancel(taskID)
				<-done
				ch.reply(226, "Abort command successful.")
				return true
			}
			// Any other command arriving before the reply is a protocol
			// violation of the one-outstanding-command rule a single
			// control socket implies; reject it without disturbing the
			// running task.
			ch.reply(503, "Bad sequence of commands.")
		}
	}
}
