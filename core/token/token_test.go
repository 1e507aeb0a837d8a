package token

import "testing"

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{EOF, "EOF"},
		{NAME, "NAME"},
		{DOLLAR_LPAREN, "DOLLAR_LPAREN"},
		{IOREDIRECT, "IOREDIRECT"},
		{Kind(-1), "UNKNOWN"},
		{Kind(10000), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestEveryKindHasAName(t *testing.T) {
	for k := EOF; k <= IOREDIRECT; k++ {
		if k.String() == "" {
			t.Errorf("kind %d has no name", int(k))
		}
	}
}

func TestKeywordsRoundTrip(t *testing.T) {
	for word, kind := range Keywords {
		if !kind.IsKeyword() {
			t.Errorf("Keywords[%q] = %v, which IsKeyword rejects", word, kind)
		}
	}
	if Keywords["ls"] != 0 || Keywords["echo"] != 0 {
		t.Error("command words must not be keywords")
	}
}

func TestIsAugAssign(t *testing.T) {
	for _, k := range []Kind{PLUS_EQ, MINUS_EQ, LSHIFT_EQ, AT_EQ} {
		if !k.IsAugAssign() {
			t.Errorf("%v must be an augmented assignment", k)
		}
	}
	for _, k := range []Kind{EQUALS, PLUS, EQ_EQ} {
		if k.IsAugAssign() {
			t.Errorf("%v must not be an augmented assignment", k)
		}
	}
}

func TestTokenEnd(t *testing.T) {
	tok := Token{Kind: NAME, Text: "echo", Pos: Position{Line: 2, Column: 4, Offset: 10}}
	end := tok.End()
	if end.Line != 2 || end.Column != 8 || end.Offset != 14 {
		t.Errorf("End() = %+v, want line 2, column 8, offset 14", end)
	}
}

func TestTokenString(t *testing.T) {
	tok := Token{Kind: NAME, Text: "ls"}
	if got := tok.String(); got != "NAME(ls)" {
		t.Errorf("String() = %q, want %q", got, "NAME(ls)")
	}
	eof := Token{Kind: EOF}
	if got := eof.String(); got != "EOF" {
		t.Errorf("String() = %q, want %q", got, "EOF")
	}
}
