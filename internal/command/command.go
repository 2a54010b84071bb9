// Package command implements the FTP command parser: a recursive-descent
// consumer of the token sequence produced by package token. Each
// supported command has a fixed production; parsing never panics and
// always yields one of the three Command forms.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ftpd/ftpd/internal/token"
)

// Form is the outcome bucket of a parse: a syntactically and
// semantically recognised command, a syntactically valid keyword with
// no implemented production, or outright garbage.
type Form int

const (
	Invalid Form = iota
	Unsupported
	Supported
)

// Kind identifies which supported command was parsed. Zero value
// (KindNone) only appears paired with Form Invalid or Unsupported.
type Kind int

const (
	KindNone Kind = iota
	KindUser
	KindPass
	KindCwd
	KindCdup
	KindQuit
	KindPort
	KindPasv
	KindRetr
	KindStor
	KindRnfr
	KindRnto
	KindDele
	KindRmd
	KindMkd
	KindPwd
	KindList
	KindAbor
)

// Command is the parser's output: a terminal classification plus,
// for Supported commands, the validated argument text.
type Command struct {
	Form Form
	Kind Kind
	Arg  string
}

var kindNames = map[Kind]string{
	KindNone: "NONE", KindUser: "USER", KindPass: "PASS", KindCwd: "CWD",
	KindCdup: "CDUP", KindQuit: "QUIT", KindPort: "PORT", KindPasv: "PASV",
	KindRetr: "RETR", KindStor: "STOR", KindRnfr: "RNFR", KindRnto: "RNTO",
	KindDele: "DELE", KindRmd: "RMD", KindMkd: "MKD", KindPwd: "PWD",
	KindList: "LIST", KindAbor: "ABOR",
}

// String renders the command name for logging and metrics labels.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// unsupportedKeywords are keywords the lexer recognises but which have
// no production in this server: syntactically a command, semantically
// not implemented. RFC 959 wants 502 for these, never 500.
var unsupportedKeywords = map[token.Kind]bool{
	token.KwAcct: true, token.KwSmnt: true, token.KwRein: true,
	token.KwType: true, token.KwStru: true, token.KwMode: true,
	token.KwStou: true, token.KwAppe: true, token.KwAllo: true,
	token.KwRest: true, token.KwNlst: true, token.KwSite: true,
	token.KwSyst: true, token.KwStat: true, token.KwHelp: true,
	token.KwNoop: true,
}

// cursor walks a token slice, never reading past the end: an offset
// beyond the last token reads as an Invalid token, so a sequence that
// lacks its Eof never matches a production.
type cursor struct {
	toks []token.Token
	pos  int
}

func (c *cursor) at(i int) token.Token {
	if c.pos+i >= len(c.toks) {
		return token.Token{Kind: token.Invalid}
	}
	return c.toks[c.pos+i]
}

// expect reports whether the token at offset i from the cursor's
// position has the given kind. Productions check fixed offsets this way
// and never advance the cursor, so a failed production leaves no state
// behind.
func expect(c *cursor, i int, kind token.Kind) bool {
	return c.at(i).Kind == kind
}

// noArgProduction matches `Kw Crlf Eof`, the shape shared by CDUP,
// QUIT, PASV, PWD (no-space) and ABOR.
func noArgProduction(c *cursor, kw token.Kind) bool {
	return expect(c, 0, kw) && expect(c, 1, token.Crlf) && expect(c, 2, token.Eof)
}

// stringArgProduction matches `Kw Space Arg Crlf Eof`, where Arg is a
// non-empty run of String, Int and Punct tokens joined back into one
// text, so a path such as "/pub" or "foo.txt" (which the lexer splits at
// each punctuation character) is a single argument. A Space or Comma
// ends the run.
func stringArgProduction(c *cursor, kw token.Kind) (string, bool) {
	if !expect(c, 0, kw) || !expect(c, 1, token.Space) {
		return "", false
	}
	var sb strings.Builder
	i := 2
loop:
	for ; ; i++ {
		switch t := c.at(i); t.Kind {
		case token.String:
			sb.WriteString(t.String)
		case token.Int:
			sb.WriteString(strconv.FormatInt(t.Int, 10))
		case token.Punct:
			sb.WriteRune(t.Punct)
		default:
			break loop
		}
	}
	if sb.Len() == 0 || !expect(c, i, token.Crlf) || !expect(c, i+1, token.Eof) {
		return "", false
	}
	return sb.String(), true
}

// passwordBody greedily concatenates Int (stringified) and String
// tokens starting at offset i until a non-matching head, permitting
// passwords that mix digits and letters (e.g. "123hunter").
func passwordBody(c *cursor, i int) (string, int) {
	var sb strings.Builder
	for {
		t := c.at(i)
		switch t.Kind {
		case token.Int:
			sb.WriteString(strconv.FormatInt(t.Int, 10))
			i++
		case token.String:
			sb.WriteString(t.String)
			i++
		default:
			return sb.String(), i
		}
	}
}

func user(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwUser)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindUser, Arg: arg}
}

func pass(c *cursor) Command {
	if !expect(c, 0, token.KwPass) || !expect(c, 1, token.Space) {
		return Command{Form: Invalid}
	}
	body, next := passwordBody(c, 2)
	if body == "" {
		return Command{Form: Invalid}
	}
	if !expect(c, next, token.Crlf) || !expect(c, next+1, token.Eof) {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindPass, Arg: body}
}

func cwd(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwCwd)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindCwd, Arg: arg}
}

func cdup(c *cursor) Command {
	if !noArgProduction(c, token.KwCdup) {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindCdup}
}

func quit(c *cursor) Command {
	if !noArgProduction(c, token.KwQuit) {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindQuit}
}

// ipv4OctetCount is the number of comma-separated integers a PORT
// command carries: four address octets plus a two-integer port.
const ipv4OctetCount = 6

// port matches `Port Space Int , Int , Int , Int , Int , Int Crlf Eof`,
// range-checks every octet, and packs the result into "h1.h2.h3.h4:P",
// the string form every other component treats as PORT's sole
// argument contract; nothing downstream re-parses the dotted quad.
//
// A rejection here still carries Kind: KindPort on the Invalid
// command, distinguishing "PORT with a bad address" (RFC 959 wants
// 501, a syntax error in parameters) from a line that isn't even a
// recognized command shape (500). The cursor position or token kind
// doesn't matter once a production has failed, only which command it
// was a malformed attempt at.
func invalidPort() Command {
	return Command{Form: Invalid, Kind: KindPort}
}

func port(c *cursor) Command {
	if !expect(c, 0, token.KwPort) || !expect(c, 1, token.Space) {
		return invalidPort()
	}

	var nums [ipv4OctetCount]int64
	pos := 2
	for i := 0; i < ipv4OctetCount; i++ {
		if !expect(c, pos, token.Int) {
			return invalidPort()
		}
		nums[i] = c.at(pos).Int
		pos++
		if i < ipv4OctetCount-1 {
			if !expect(c, pos, token.Comma) {
				return invalidPort()
			}
			pos++
		}
	}
	if !expect(c, pos, token.Crlf) || !expect(c, pos+1, token.Eof) {
		return invalidPort()
	}

	for i := 0; i < 4; i++ {
		if nums[i] < 0 || nums[i] > 255 {
			return invalidPort()
		}
	}
	p1, p2 := nums[4], nums[5]
	if p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return invalidPort()
	}
	portNum := p1*256 + p2
	if portNum < 0 || portNum > 65535 {
		return invalidPort()
	}

	arg := fmt.Sprintf("%d.%d.%d.%d:%d", nums[0], nums[1], nums[2], nums[3], portNum)
	return Command{Form: Supported, Kind: KindPort, Arg: arg}
}

func pasv(c *cursor) Command {
	if !noArgProduction(c, token.KwPasv) {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindPasv}
}

func retr(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwRetr)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindRetr, Arg: arg}
}

func stor(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwStor)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindStor, Arg: arg}
}

func rnfr(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwRnfr)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindRnfr, Arg: arg}
}

func rnto(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwRnto)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindRnto, Arg: arg}
}

func dele(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwDele)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindDele, Arg: arg}
}

func rmd(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwRmd)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindRmd, Arg: arg}
}

func mkd(c *cursor) Command {
	arg, ok := stringArgProduction(c, token.KwMkd)
	if !ok {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindMkd, Arg: arg}
}

func pwd(c *cursor) Command {
	if !noArgProduction(c, token.KwPwd) {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindPwd}
}

// list matches either `List Crlf Eof` or `List Space String Crlf Eof`,
// the only production in the table with an optional argument pair.
func list(c *cursor) Command {
	if noArgProduction(c, token.KwList) {
		return Command{Form: Supported, Kind: KindList}
	}
	if arg, ok := stringArgProduction(c, token.KwList); ok {
		return Command{Form: Supported, Kind: KindList, Arg: arg}
	}
	return Command{Form: Invalid}
}

func abor(c *cursor) Command {
	if !noArgProduction(c, token.KwAbor) {
		return Command{Form: Invalid}
	}
	return Command{Form: Supported, Kind: KindAbor}
}

// Parse consumes a token sequence produced by token.Lex and yields
// exactly one of {Supported, Unsupported, Invalid}. It never panics.
func Parse(toks []token.Token) Command {
	if len(toks) == 0 {
		return Command{Form: Invalid}
	}

	c := &cursor{toks: toks}
	switch toks[0].Kind {
	case token.KwUser:
		return user(c)
	case token.KwPass:
		return pass(c)
	case token.KwCwd:
		return cwd(c)
	case token.KwCdup:
		return cdup(c)
	case token.KwQuit:
		return quit(c)
	case token.KwPort:
		return port(c)
	case token.KwPasv:
		return pasv(c)
	case token.KwRetr:
		return retr(c)
	case token.KwStor:
		return stor(c)
	case token.KwRnfr:
		return rnfr(c)
	case token.KwRnto:
		return rnto(c)
	case token.KwDele:
		return dele(c)
	case token.KwRmd:
		return rmd(c)
	case token.KwMkd:
		return mkd(c)
	case token.KwPwd:
		return pwd(c)
	case token.KwList:
		return list(c)
	case token.KwAbor:
		return abor(c)
	default:
		if unsupportedKeywords[toks[0].Kind] {
			return Command{Form: Unsupported}
		}
		return Command{Form: Invalid}
	}
}
