package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ftpd/ftpd/internal/command"
	"github.com/ftpd/ftpd/internal/ratelimit"
	"github.com/ftpd/ftpd/internal/session"
	"github.com/ftpd/ftpd/internal/transport"
)

// dispatch is the command handler entry point run inside a pool worker:
// snapshot the session, validate it against the requested command, run
// the handler, then persist any state the handler mutated.
func (ch *connHandler) dispatch(ctx context.Context, cmd command.Command) {
	sess, err := ch.srv.store.Get(ch.id)
	if err != nil {
		return
	}
	if sess.State == session.Invalid {
		ch.reply(421, "Service not available, closing control connection.")
		return
	}

	switch cmd.Kind {
	case command.KindUser:
		ch.handleUser(&sess, cmd.Arg)
	case command.KindPass:
		ch.handlePass(&sess, cmd.Arg)
	case command.KindQuit:
		ch.reply(221, "Goodbye.")
		ch.srv.store.Remove(ch.id)
		return
	default:
		if sess.State != session.StateActive {
			ch.reply(530, "Please login with USER and PASS.")
			return
		}
		switch cmd.Kind {
		case command.KindCwd:
			ch.handleCwd(cmd.Arg)
		case command.KindCdup:
			ch.handleCwd("..")
		case command.KindPwd:
			ch.handlePwd()
		case command.KindPort:
			ch.handlePort(&sess, cmd.Arg)
		case command.KindPasv:
			ch.handlePasv(&sess)
		case command.KindMkd:
			ch.handleMkd(cmd.Arg)
		case command.KindRmd:
			ch.handleRmd(cmd.Arg)
		case command.KindDele:
			ch.handleDele(cmd.Arg)
		case command.KindRnfr:
			ch.handleRnfr(cmd.Arg)
		case command.KindRnto:
			ch.handleRnto(cmd.Arg)
		case command.KindRetr:
			ch.handleRetr(ctx, &sess, cmd.Arg)
		case command.KindStor:
			ch.handleStor(ctx, &sess, cmd.Arg)
		case command.KindList:
			ch.handleList(ctx, &sess, cmd.Arg)
		default:
			ch.reply(502, "Command not implemented.")
			return
		}
	}

	ch.srv.store.Update(sess)
}

// handleUser records the candidate username and asks for a password. A
// session that has already completed login stays logged in: USER only
// arms a pending login, it never drops an active one back to
// LoginRequired.
func (ch *connHandler) handleUser(sess *session.Session, arg string) {
	sess.Username = arg
	if sess.State != session.StateActive {
		sess.State = session.LoginRequired
	}
	ch.reply(331, "User name okay, need password.")
}

func (ch *connHandler) handlePass(sess *session.Session, arg string) {
	if sess.Username == "" {
		ch.reply(503, "Login with USER first.")
		return
	}
	sess.Password = arg
	ok := ch.srv.verifier.Verify(sess.Username, arg)
	if ch.srv.metricsCollector != nil {
		ch.srv.metricsCollector.RecordAuthentication(ok, sess.Username)
	}
	if !ok {
		ch.reply(530, "Login incorrect.")
		return
	}

	ctx, err := ch.srv.driver.Open(sess.WorkingDir)
	if err != nil {
		ch.reply(530, "Login incorrect.")
		return
	}
	ch.ctx = ctx
	sess.State = session.StateActive
	sess.CurrentDir = "/"
	ch.reply(230, "User logged in, proceed.")
}

func (ch *connHandler) handleCwd(arg string) {
	if err := ch.ctx.ChangeDir(arg); err != nil {
		ch.reply(550, fmt.Sprintf("%s: %s.", arg, fsErrorText(err)))
		return
	}
	ch.reply(250, "CWD command successful.")
}

func (ch *connHandler) handlePwd() {
	wd, _ := ch.ctx.GetWd()
	ch.reply(257, fmt.Sprintf("%q is the current directory.", wd))
}

func (ch *connHandler) handleMkd(arg string) {
	if err := ch.ctx.MakeDir(arg); err != nil {
		ch.reply(550, fmt.Sprintf("%s: %s.", arg, fsErrorText(err)))
		return
	}
	ch.reply(257, fmt.Sprintf("%q created.", arg))
}

func (ch *connHandler) handleRmd(arg string) {
	if err := ch.ctx.RemoveDir(arg); err != nil {
		ch.reply(550, fmt.Sprintf("%s: %s.", arg, fsErrorText(err)))
		return
	}
	ch.reply(250, "RMD command successful.")
}

func (ch *connHandler) handleDele(arg string) {
	if err := ch.ctx.DeleteFile(arg); err != nil {
		ch.reply(550, fmt.Sprintf("%s: %s.", arg, fsErrorText(err)))
		return
	}
	ch.reply(250, "DELE command successful.")
}

func (ch *connHandler) handleRnfr(arg string) {
	if _, err := ch.ctx.GetFileInfo(arg); err != nil {
		ch.reply(550, fmt.Sprintf("%s: %s.", arg, fsErrorText(err)))
		return
	}
	ch.rnfr = arg
	ch.reply(350, "Requested file action pending further information.")
}

func (ch *connHandler) handleRnto(arg string) {
	if ch.rnfr == "" {
		ch.reply(503, "RNFR required first.")
		return
	}
	from := ch.rnfr
	ch.rnfr = ""
	if err := ch.ctx.Rename(from, arg); err != nil {
		ch.reply(550, fmt.Sprintf("rename failed: %s.", fsErrorText(err)))
		return
	}
	ch.reply(250, "RNTO command successful.")
}

// handlePort closes any existing data channel, records the client's
// advertised endpoint, and switches the session to active mode. A data
// channel opened by an earlier PORT or PASV must be torn down before the
// new endpoint takes effect.
func (ch *connHandler) handlePort(sess *session.Session, arg string) {
	ch.closeData()

	host, port, err := splitHostPort(arg)
	if err != nil {
		ch.reply(501, "Syntax error in parameters.")
		return
	}
	sess.ActiveHost = host
	sess.ActivePort = port
	sess.Sockets.Mode = session.Active
	ch.reply(200, "PORT command successful.")
}

// handlePasv closes any existing data channel, opens a new passive
// listener (bounded by the configured port range if any), and replies
// 227 with the listener's address in four-octet/two-octet form.
func (ch *connHandler) handlePasv(sess *session.Session) {
	ch.closeData()

	ln, err := ch.openPassiveListener()
	if err != nil {
		ch.reply(425, "Can't open passive connection.")
		return
	}
	ch.passiveListener = ln
	sess.Sockets.Mode = session.Passive

	host := ch.srv.settings.PublicHost
	if host == "" {
		host, _, _ = net.SplitHostPort(ch.conn.LocalAddr().String())
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	ip := net.ParseIP(host).To4()
	if ip == nil {
		ip = net.IPv4(127, 0, 0, 1).To4()
	}
	ch.reply(227, fmt.Sprintf("Entering Passive Mode (%d,%d,%d,%d,%d,%d).",
		ip[0], ip[1], ip[2], ip[3], port/256, port%256))
}

func (ch *connHandler) openPassiveListener() (net.Listener, error) {
	min, max := ch.srv.settings.PasvMinPort, ch.srv.settings.PasvMaxPort
	if min <= 0 || max <= 0 {
		return net.Listen("tcp", ":0")
	}
	for p := min; p <= max; p++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("no free port in range %d-%d", min, max)
}

// openDataConn establishes the data channel for a transfer command:
// dials out to the client's PORT endpoint in active mode, or accepts the
// one pending connection on the passive listener.
func (ch *connHandler) openDataConn(ctx context.Context, sess *session.Session) (net.Conn, error) {
	if sess.Sockets.Mode == session.Passive {
		if ch.passiveListener == nil {
			return nil, errors.New("no passive listener")
		}
		type result struct {
			conn net.Conn
			err  error
		}
		resCh := make(chan result, 1)
		go func() {
			conn, err := ch.passiveListener.Accept()
			resCh <- result{conn, err}
		}()
		select {
		case r := <-resCh:
			return r.conn, r.err
		case <-ctx.Done():
			ch.passiveListener.Close()
			return nil, ctx.Err()
		}
	}

	if sess.ActiveHost == "" {
		return nil, errors.New("no PORT endpoint")
	}
	dialer := net.Dialer{}
	return dialer.DialContext(ctx, "tcp", net.JoinHostPort(sess.ActiveHost, strconv.Itoa(sess.ActivePort)))
}

func (ch *connHandler) closeData() {
	if ch.dataConn != nil {
		ch.dataConn.Close()
		ch.dataConn = nil
	}
	if ch.passiveListener != nil {
		ch.passiveListener.Close()
		ch.passiveListener = nil
	}
}

// handleRetr streams a file to the data channel as a sequence of
// DataBlock records, setting the EOF descriptor bit on the final block
// even when it is short or empty, per the original RETR handler's
// contract.
func (ch *connHandler) handleRetr(ctx context.Context, sess *session.Session, arg string) {
	f, err := ch.ctx.OpenFile(arg, os.O_RDONLY)
	if err != nil {
		ch.reply(550, fmt.Sprintf("%s: %s.", arg, fsErrorText(err)))
		return
	}
	defer f.Close()

	conn, err := ch.openDataConn(ctx, sess)
	if err != nil {
		ch.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	ch.reply(125, "Data connection already open; transfer starting.")

	var src io.Reader = f
	if ch.srv.globalLimiter != nil {
		src = ratelimit.NewReader(src, ch.srv.globalLimiter)
	}

	start := time.Now()
	total, err := streamOut(ctx, conn, src)
	if ch.srv.metricsCollector != nil {
		ch.srv.metricsCollector.RecordTransfer("RETR", total, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		ch.reply(426, "Connection closed; transfer aborted.")
		return
	}
	ch.reply(250, "Transfer complete.")
}

// handleStor is RETR's mirror: it reads DataBlock records off the data
// channel until the EOF descriptor bit, writing each to the opened file.
func (ch *connHandler) handleStor(ctx context.Context, sess *session.Session, arg string) {
	f, err := ch.ctx.OpenFile(arg, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		ch.reply(550, fmt.Sprintf("%s: %s.", arg, fsErrorText(err)))
		return
	}
	defer f.Close()

	conn, err := ch.openDataConn(ctx, sess)
	if err != nil {
		ch.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	ch.reply(125, "Data connection already open; transfer starting.")

	var dst = io.Writer(f)
	if ch.srv.globalLimiter != nil {
		dst = ratelimit.NewWriter(dst, ch.srv.globalLimiter)
	}

	start := time.Now()
	total, err := streamIn(ctx, dst, conn)
	if ch.srv.metricsCollector != nil {
		ch.srv.metricsCollector.RecordTransfer("STOR", total, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		ch.reply(451, "Local error in processing.")
		return
	}
	ch.reply(250, "Transfer complete.")
}

// handleList renders the requested directory as an ls -l style listing,
// then streams it over the data channel the same way a file transfer
// would.
func (ch *connHandler) handleList(ctx context.Context, sess *session.Session, arg string) {
	path := arg
	if path == "" {
		path = "."
	}
	entries, err := ch.ctx.ListDir(path)
	if err != nil {
		ch.reply(450, fmt.Sprintf("%s: %s.", path, fsErrorText(err)))
		return
	}

	conn, err := ch.openDataConn(ctx, sess)
	if err != nil {
		ch.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	ch.reply(150, "Here comes the directory listing.")
	listing := formatListing(entries)
	if _, err := streamOut(ctx, conn, strings.NewReader(string(listing))); err != nil {
		ch.reply(426, "Connection closed; transfer aborted.")
		return
	}
	ch.reply(250, "Directory send OK.")
}

// streamOut chunks src into DataBlockMaxLen-sized DataBlocks and sends
// them over conn, setting the EOF descriptor bit on the final block even
// if it is short or empty.
func streamOut(ctx context.Context, conn net.Conn, src io.Reader) (int64, error) {
	buf := make([]byte, transport.DataBlockMaxLen)
	var total int64
	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := src.Read(buf)
		eof := err == io.EOF
		if n > 0 {
			block := transport.DataBlock{Data: append([]byte(nil), buf[:n]...)}
			if eof {
				block.Descriptor = transport.DescriptorEOF
			}
			if sendErr := transport.SendDataBlock(conn, block); sendErr != nil {
				return total, sendErr
			}
			total += int64(n)
		}
		if eof {
			if n == 0 {
				if sendErr := transport.SendDataBlock(conn, transport.DataBlock{Descriptor: transport.DescriptorEOF}); sendErr != nil {
					return total, sendErr
				}
			}
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// streamIn receives DataBlock records from conn and writes them to dst
// until the EOF descriptor bit is set.
func streamIn(ctx context.Context, dst io.Writer, conn net.Conn) (int64, error) {
	var total int64
	for {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		block, err := transport.RecvDataBlock(conn)
		if err != nil {
			return total, err
		}
		if len(block.Data) > 0 {
			n, werr := dst.Write(block.Data)
			total += int64(n)
			if werr != nil {
				return total, werr
			}
		}
		if block.EOF() {
			return total, nil
		}
	}
}

func splitHostPort(arg string) (string, int, error) {
	idx := strings.LastIndex(arg, ":")
	if idx < 0 {
		return "", 0, errors.New("malformed PORT argument")
	}
	host := arg[:idx]
	port, err := strconv.Atoi(arg[idx+1:])
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func fsErrorText(err error) string {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "No such file or directory"
	case errors.Is(err, os.ErrPermission):
		return "Permission denied"
	case errors.Is(err, os.ErrExist):
		return "File exists"
	default:
		return err.Error()
	}
}
