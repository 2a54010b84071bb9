// Package token implements the FTP command-line lexer.
//
// It turns one CRLF-terminated control line into an ordered sequence of
// typed tokens. The lexer never errors: an unrecognized or malformed run
// of input becomes a token the parser (package command) can reject, so
// lexing is total over any input byte sequence.
package token

import (
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Token. Go has no sum types, so
// Kind plays the role the C lexer's `enum token_type` plus `union` played
// together: the union's one live field is picked by the tag below.
type Kind int

const (
	Invalid Kind = iota
	Int
	Punct
	Comma
	String
	Space
	Crlf
	Eof

	// one Kind per recognised FTP keyword, case-insensitive
	KwUser
	KwPass
	KwAcct
	KwCwd
	KwCdup
	KwSmnt
	KwRein
	KwQuit
	KwPort
	KwPasv
	KwType
	KwStru
	KwMode
	KwRetr
	KwStor
	KwStou
	KwAppe
	KwAllo
	KwRest
	KwRnfr
	KwRnto
	KwAbor
	KwDele
	KwRmd
	KwMkd
	KwPwd
	KwList
	KwNlst
	KwSite
	KwSyst
	KwStat
	KwHelp
	KwNoop
)

// keywords maps the lower-cased identifier spelling to its Kind. Matching
// is total over exactly these 33 keywords per spec; anything else lexes
// to a String token.
var keywords = map[string]Kind{
	"user": KwUser, "pass": KwPass, "acct": KwAcct, "cwd": KwCwd, "cdup": KwCdup,
	"smnt": KwSmnt, "rein": KwRein, "quit": KwQuit, "port": KwPort, "pasv": KwPasv,
	"type": KwType, "stru": KwStru, "mode": KwMode, "retr": KwRetr, "stor": KwStor,
	"stou": KwStou, "appe": KwAppe, "allo": KwAllo, "rest": KwRest, "rnfr": KwRnfr,
	"rnto": KwRnto, "abor": KwAbor, "dele": KwDele, "rmd": KwRmd, "mkd": KwMkd,
	"pwd": KwPwd, "list": KwList, "nlst": KwNlst, "site": KwSite, "syst": KwSyst,
	"stat": KwStat, "help": KwHelp, "noop": KwNoop,
}

// Token is a single lexical unit. Only the field matching Kind is
// meaningful; the rest are zero.
type Token struct {
	Kind   Kind
	Int    int64  // valid when Kind == Int
	Punct  rune   // valid when Kind == Punct or Comma
	String string // valid when Kind == String
}

// isPunct reports whether c is one of the FTP "generalized punctuation"
// runes: !"#$%&'()*+-./:;<=>?@[\]^`{|}~, everything ispunct(3) accepts
// except the underscore, which the lexer treats as an identifier
// character so keywords and arguments can contain it.
func isPunct(c byte) bool {
	switch {
	case c >= '!' && c <= '/':
		return true
	case c >= ':' && c <= '@':
		return true
	case c >= '[' && c <= '^':
		return true
	case c == '`':
		return true
	case c >= '{' && c <= '~':
		return true
	}
	return false
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f'
}

// Lex tokenizes line into a token sequence terminated by an Eof token.
// Leading/trailing whitespace other than a terminating CRLF collapses
// into a single Space token; any other whitespace run is likewise a
// single Space. A bare '\r' not followed by '\n' is not a line
// terminator and is absorbed into the surrounding space run.
func Lex(line string) []Token {
	var toks []Token
	if line == "" {
		return append(toks, Token{Kind: Eof})
	}

	i := 0
	n := len(line)
	for i < n {
		c := line[i]
		switch {
		case c == '\r' && i+1 < n && line[i+1] == '\n':
			toks = append(toks, Token{Kind: Crlf})
			i += 2

		case isSpace(c) || c == '\r' || c == '\n':
			j := i
			for j < n && (isSpace(line[j]) || line[j] == '\n' || (line[j] == '\r' && !(j+1 < n && line[j+1] == '\n'))) {
				j++
			}
			toks = append(toks, Token{Kind: Space})
			i = j

		case isPunct(c):
			kind := Punct
			if c == ',' {
				kind = Comma
			}
			toks = append(toks, Token{Kind: kind, Punct: rune(c)})
			i++

		case isDigit(c):
			j := i
			for j < n && isDigit(line[j]) {
				j++
			}
			v, err := strconv.ParseInt(line[i:j], 10, 64)
			if err != nil {
				toks = append(toks, Token{Kind: Invalid})
			} else {
				toks = append(toks, Token{Kind: Int, Int: v})
			}
			i = j

		case isIdentChar(c):
			j := i
			for j < n && isIdentChar(line[j]) {
				j++
			}
			word := strings.ToLower(line[i:j])
			if kw, ok := keywords[word]; ok {
				toks = append(toks, Token{Kind: kw})
			} else {
				toks = append(toks, Token{Kind: String, String: word})
			}
			i = j

		default:
			// Any other byte (control chars, high bytes) is folded into a
			// single-rune String token so lexing stays total.
			toks = append(toks, Token{Kind: String, String: string(c)})
			i++
		}
	}

	toks = append(toks, Token{Kind: Eof})
	return toks
}

// String returns a human-readable name for Kind, used in test failure
// messages and debug logging.
func (k Kind) String() string {
	switch k {
	case Invalid:
		return "Invalid"
	case Int:
		return "Int"
	case Punct:
		return "Punct"
	case Comma:
		return "Comma"
	case String:
		return "String"
	case Space:
		return "Space"
	case Crlf:
		return "Crlf"
	case Eof:
		return "Eof"
	}
	for word, kind := range keywords {
		if kind == k {
			return strings.ToUpper(word)
		}
	}
	return "Unknown"
}
