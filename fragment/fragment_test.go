package fragment

import "testing"

func TestFormatRawAndParam(t *testing.T) {
	f := New().Raw("SELECT * FROM t WHERE id = ").Param(42)
	text, params := Format(f)
	if text != "SELECT * FROM t WHERE id = $1" {
		t.Fatalf("text = %q", text)
	}
	if len(params) != 1 || params[0] != 42 {
		t.Fatalf("params = %v", params)
	}
}

func TestFormatIdent(t *testing.T) {
	f := New().Raw("SELECT * FROM ").Ident(`weird"table`)
	text, _ := Format(f)
	if text != `SELECT * FROM "weird""table"` {
		t.Fatalf("text = %q", text)
	}
}

func TestFormatFragNesting(t *testing.T) {
	inner := New().Raw("id = ").Param(1)
	outer := New().Raw("SELECT * FROM t WHERE ").Frag(inner).Raw(" AND active = ").Param(true)
	text, params := Format(outer)
	if text != "SELECT * FROM t WHERE id = $1 AND active = $2" {
		t.Fatalf("text = %q", text)
	}
	if len(params) != 2 || params[0] != 1 || params[1] != true {
		t.Fatalf("params = %v", params)
	}
}

func TestJoin(t *testing.T) {
	f := Join(", ", New().Raw("a"), New().Raw("b"), New().Raw("c"))
	text, params := Format(f)
	if text != "a, b, c" {
		t.Fatalf("text = %q", text)
	}
	if len(params) != 0 {
		t.Fatalf("params = %v", params)
	}
}

func TestArrayAndRow(t *testing.T) {
	text, params := Format(Array(1, 2, 3))
	if text != "ARRAY[$1, $2, $3]" {
		t.Fatalf("array text = %q", text)
	}
	if len(params) != 3 {
		t.Fatalf("array params = %v", params)
	}

	text, params = Format(Row("a", "b"))
	if text != "($1, $2)" {
		t.Fatalf("row text = %q", text)
	}
	if len(params) != 2 {
		t.Fatalf("row params = %v", params)
	}
}

func TestSQL(t *testing.T) {
	f := SQL([]string{"SELECT * FROM t WHERE id = ", " AND name = ", ""}, 1, "bob")
	text, params := Format(f)
	if text != "SELECT * FROM t WHERE id = $1 AND name = $2" {
		t.Fatalf("text = %q", text)
	}
	if len(params) != 2 || params[0] != 1 || params[1] != "bob" {
		t.Fatalf("params = %v", params)
	}
}

func TestQuoteIdentEscaping(t *testing.T) {
	if got := QuoteIdent("simple"); got != `"simple"` {
		t.Fatalf("got %q", got)
	}
	if got := QuoteIdent(`with"quote`); got != `"with""quote"` {
		t.Fatalf("got %q", got)
	}
}

func TestParamNumberingAcrossFragTypes(t *testing.T) {
	f := New().
		Raw("UPDATE t SET ").
		Ident("col").
		Raw(" = ").Param("v").
		Raw(" WHERE ").
		Frag(Row(1, 2))
	text, params := Format(f)
	if text != `UPDATE t SET "col" = $1 WHERE ($2, $3)` {
		t.Fatalf("text = %q", text)
	}
	if len(params) != 3 {
		t.Fatalf("params = %v", params)
	}
}
