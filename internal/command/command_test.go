package command

import (
	"testing"

	"github.com/ftpd/ftpd/internal/token"
)

func parseLine(line string) Command {
	return Parse(token.Lex(line))
}

func TestParseSupportedCommands(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line     string
		wantKind Kind
		wantArg  string
	}{
		{"USER alice\r\n", KindUser, "alice"},
		{"PASS 123hunter2\r\n", KindPass, "123hunter2"},
		{"CWD /pub\r\n", KindCwd, "/pub"},
		{"CDUP\r\n", KindCdup, ""},
		{"QUIT\r\n", KindQuit, ""},
		{"PASV\r\n", KindPasv, ""},
		{"RETR foo.txt\r\n", KindRetr, "foo.txt"},
		{"STOR foo.txt\r\n", KindStor, "foo.txt"},
		{"RNFR old.txt\r\n", KindRnfr, "old.txt"},
		{"RNTO new.txt\r\n", KindRnto, "new.txt"},
		{"DELE foo.txt\r\n", KindDele, "foo.txt"},
		{"RMD sub\r\n", KindRmd, "sub"},
		{"MKD sub\r\n", KindMkd, "sub"},
		{"PWD\r\n", KindPwd, ""},
		{"LIST\r\n", KindList, ""},
		{"LIST /pub\r\n", KindList, "/pub"},
		{"ABOR\r\n", KindAbor, ""},
	}
	for _, tt := range tests {
		got := parseLine(tt.line)
		if got.Form != Supported || got.Kind != tt.wantKind || got.Arg != tt.wantArg {
			t.Errorf("parseLine(%q) = %+v, want {Supported %v %q}", tt.line, got, tt.wantKind, tt.wantArg)
		}
	}
}

func TestParsePort(t *testing.T) {
	t.Parallel()
	got := parseLine("PORT 127,0,0,1,7,208\r\n")
	if got.Form != Supported || got.Kind != KindPort || got.Arg != "127.0.0.1:2000" {
		t.Errorf("parse PORT = %+v, want Supported/KindPort/127.0.0.1:2000", got)
	}
}

func TestParsePortOctetRange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		ok   bool
	}{
		{"PORT 127,0,0,1,7,208\r\n", true},
		{"PORT 0,0,0,0,0,0\r\n", true},
		{"PORT 255,255,255,255,255,255\r\n", true},
		{"PORT 256,0,0,1,7,208\r\n", false},
		{"PORT 127,0,0,1,256,0\r\n", false},
		{"PORT -1,0,0,1,7,208\r\n", false},
	}
	for _, tt := range tests {
		got := parseLine(tt.line)
		isSupported := got.Form == Supported
		if isSupported != tt.ok {
			t.Errorf("parseLine(%q).Form = %v, want ok=%v", tt.line, got.Form, tt.ok)
		}
	}
}

func TestParseUnsupportedKeyword(t *testing.T) {
	t.Parallel()
	for _, line := range []string{"TYPE A\r\n", "SYST\r\n", "NOOP\r\n", "SITE CHMOD 644 x\r\n"} {
		got := parseLine(line)
		if got.Form != Unsupported {
			t.Errorf("parseLine(%q).Form = %v, want Unsupported", line, got.Form)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, line := range []string{"", "\r\n", "GARBAGE\r\n", "USER\r\n", "USER alice bob\r\n"} {
		got := parseLine(line)
		if got.Form != Invalid {
			t.Errorf("parseLine(%q).Form = %v, want Invalid", line, got.Form)
		}
	}
}

// TestParserStrictness exercises spec's Parser-strictness property:
// dropping or inserting a single token in a fixed production must yield
// Invalid.
func TestParserStrictness(t *testing.T) {
	t.Parallel()
	toks := token.Lex("CWD /pub\r\n")

	// Drop the trailing Eof.
	dropped := toks[:len(toks)-1]
	if got := Parse(dropped); got.Form != Invalid {
		t.Errorf("Parse with Eof dropped = %v, want Invalid", got.Form)
	}

	// Insert an extra token before Crlf.
	inserted := append([]token.Token{}, toks[:len(toks)-2]...)
	inserted = append(inserted, token.Token{Kind: token.Comma, Punct: ','})
	inserted = append(inserted, toks[len(toks)-2:]...)
	if got := Parse(inserted); got.Form != Invalid {
		t.Errorf("Parse with extra token inserted = %v, want Invalid", got.Form)
	}
}

func TestParseTotalNeverPanics(t *testing.T) {
	t.Parallel()
	inputs := []string{"", "\r\n", "\x00\x01", "PORT 1,2,3\r\n", "LIST extra tokens here\r\n"}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Parse(Lex(%q)) panicked: %v", in, r)
				}
			}()
			got := Parse(token.Lex(in))
			if got.Form != Invalid && got.Form != Unsupported && got.Form != Supported {
				t.Errorf("Parse(Lex(%q)) returned unknown Form %v", in, got.Form)
			}
		}()
	}
}
