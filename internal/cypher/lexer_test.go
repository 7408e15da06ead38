package cypher

import "testing"

func TestLexBasicQuery(t *testing.T) {
	tokens, err := Lex(`MATCH (f:Function) WHERE f.name = "Hello" RETURN f.name`)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}

	expected := []TokenType{
		TokMatch, TokLParen, TokIdent, TokColon, TokIdent, TokRParen,
		TokWhere, TokIdent, TokDot, TokIdent, TokEQ, TokString,
		TokReturn, TokIdent, TokDot, TokIdent, TokEOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, tok := range tokens {
		if tok.Type != expected[i] {
			t.Errorf("token[%d]: expected type %d, got %d (%q)", i, expected[i], tok.Type, tok.Value)
		}
	}
}

func TestLexRegexOperator(t *testing.T) {
	tokens, err := Lex(`f.name =~ ".*Handler"`)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	// f, ., name, =~, ".*Handler"
	if tokens[3].Type != TokRegex {
		t.Errorf("expected TokRegex, got type %d (%q)", tokens[3].Type, tokens[3].Value)
	}
}

func TestLexVariableLengthPath(t *testing.T) {
	tokens, err := Lex(`[:CALLS*1..3]`)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	expected := []TokenType{
		TokLBracket, TokColon, TokIdent, TokStar, TokNumber, TokDotDot, TokNumber, TokRBracket, TokEOF,
	}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, tok := range tokens {
		if tok.Type != expected[i] {
			t.Errorf("token[%d]: expected type %d, got %d (%q)", i, expected[i], tok.Type, tok.Value)
		}
	}
}

func TestLexMutationKeywordsLexAsIdent(t *testing.T) {
	tokens, err := Lex(`MATCH (n) DETACH DELETE n`)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	var saw []string
	for _, tok := range tokens {
		if tok.Type == TokIdent {
			saw = append(saw, tok.Value)
		}
	}
	foundDetach, foundDelete := false, false
	for _, v := range saw {
		switch v {
		case "DETACH":
			foundDetach = true
		case "DELETE":
			foundDelete = true
		}
	}
	if !foundDetach || !foundDelete {
		t.Fatalf("expected DETACH and DELETE to lex as TokIdent (the ad_hoc guard's scan depends on this), got idents %v", saw)
	}
}
