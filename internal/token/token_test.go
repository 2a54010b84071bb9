package token

import (
	"reflect"
	"strings"
	"testing"
)

func TestLexKeywords(t *testing.T) {
	t.Parallel()
	toks := Lex("USER\r\n")
	want := []Token{{Kind: KwUser}, {Kind: Crlf}, {Kind: Eof}}
	if !reflect.DeepEqual(toks, want) {
		t.Errorf("Lex(USER) = %v, want %v", toks, want)
	}
}

func TestLexCaseInsensitive(t *testing.T) {
	t.Parallel()
	for _, line := range []string{"user\r\n", "User\r\n", "UsEr\r\n"} {
		toks := Lex(line)
		if toks[0].Kind != KwUser {
			t.Errorf("Lex(%q)[0].Kind = %v, want KwUser", line, toks[0].Kind)
		}
	}
}

func TestLexPortArgument(t *testing.T) {
	t.Parallel()
	toks := Lex("PORT 127,0,0,1,7,208\r\n")
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []Kind{KwPort, Space, Int, Comma, Int, Comma, Int, Comma, Int, Comma, Int, Comma, Int, Crlf, Eof}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("Lex(PORT ...) kinds = %v, want %v", kinds, want)
	}
}

func TestLexIntOverflowIsInvalid(t *testing.T) {
	t.Parallel()
	toks := Lex("PORT 99999999999999999999,0,0,1,7,208\r\n")
	if toks[2].Kind != Invalid {
		t.Errorf("overflow run lexed as %v, want Invalid", toks[2].Kind)
	}
}

func TestLexWhitespaceCollapses(t *testing.T) {
	t.Parallel()
	toks := Lex("USER   alice\r\n")
	want := []Token{{Kind: KwUser}, {Kind: Space}, {Kind: String, String: "alice"}, {Kind: Crlf}, {Kind: Eof}}
	if !reflect.DeepEqual(toks, want) {
		t.Errorf("Lex with run of spaces = %v, want %v", toks, want)
	}
}

func TestLexUnknownIdentifierIsString(t *testing.T) {
	t.Parallel()
	toks := Lex("FROB\r\n")
	if toks[0].Kind != String || toks[0].String != "frob" {
		t.Errorf("Lex(FROB) = %v, want a lower-cased String token", toks[0])
	}
}

func TestLexTotal(t *testing.T) {
	t.Parallel()
	inputs := []string{"", "\r\n", "\x00\x01\x02", "PASS 123hunter2\r\n", strings.Repeat("a", 600)}
	for _, in := range inputs {
		toks := Lex(in)
		if len(toks) == 0 || toks[len(toks)-1].Kind != Eof {
			t.Errorf("Lex(%q) did not terminate with Eof: %v", in, toks)
		}
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()
	if KwUser.String() != "USER" {
		t.Errorf("KwUser.String() = %q, want USER", KwUser.String())
	}
	if Crlf.String() != "Crlf" {
		t.Errorf("Crlf.String() = %q, want Crlf", Crlf.String())
	}
}
