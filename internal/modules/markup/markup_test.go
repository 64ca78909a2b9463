package markup

import (
	"context"
	"strings"
	"testing"

	"codebot/internal/core"
)

func TestFormatCSS(t *testing.T) {
	got, err := FormatCSS("body{color:red;margin:0   auto}a:hover,a:focus{color:blue}")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	want := "body {\n  color: red;\n  margin: 0 auto;\n}\n\na:hover, a:focus {\n  color: blue;\n}"
	if got != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatCSSNested(t *testing.T) {
	got, err := FormatCSS("@media (max-width:600px){p{font-size:12px}}")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	want := "@media (max-width:600px) {\n  p {\n    font-size: 12px;\n  }\n}"
	if got != want {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

func TestFormatCSSKeepsStringsAndURLs(t *testing.T) {
	got, err := FormatCSS(`a{content:"x;  }";background:url(data:image/png;base64,AAA)}`)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(got, `  content: "x;  }";`) {
		t.Fatalf("string literal changed:\n%s", got)
	}
	if !strings.Contains(got, "  background: url(data:image/png;base64,AAA);") {
		t.Fatalf("url changed:\n%s", got)
	}
}

func TestFormatCSSComments(t *testing.T) {
	got, err := FormatCSS("/* base */p{margin:0}")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.HasPrefix(got, "/* base */\n") {
		t.Fatalf("comment lost:\n%s", got)
	}
}

func TestFormatCSSUnbalanced(t *testing.T) {
	for _, src := range []string{"a{color:red", "}", `a{content:"x}`} {
		if _, err := FormatCSS(src); err == nil {
			t.Fatalf("expected error for %q", src)
		}
	}
}

func TestCSSHandlerError(t *testing.T) {
	h := NewCSS(Options{})
	res := h.Handle(context.Background(), core.CodeRequest{Language: "css", Source: "a{"})
	if !res.IsError || !strings.HasPrefix(res.Text, "Could not format css") {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestHTMLHandler(t *testing.T) {
	h := NewHTML(Options{})
	if h.Language() != "html" {
		t.Fatalf("unexpected language %q", h.Language())
	}
	res := h.Handle(context.Background(), core.CodeRequest{Language: "html", Source: "<div><p>hi</p></div>"})
	if res.IsError || res.Fence != "" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if !strings.HasPrefix(res.Text, "<div>") || !strings.Contains(res.Text, "\n  <p>") {
		t.Fatalf("expected two-space indentation, got:\n%s", res.Text)
	}
}

func TestHighlight(t *testing.T) {
	h := NewCSS(Options{Highlight: true})
	res := h.Handle(context.Background(), core.CodeRequest{Language: "css", Source: "p{margin:0}"})
	if res.IsError || res.Fence != "ansi" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if !strings.Contains(res.Text, "\x1b[") {
		t.Fatalf("expected ansi escapes, got %q", res.Text)
	}
}

func TestFormatCSSAtRulesAndImportant(t *testing.T) {
	got, err := FormatCSS(`@import url("base.css");.btn  >  span{color:red !important;--gap: 4px}`)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	for _, want := range []string{
		`@import url("base.css");`,
		".btn > span {",
		"  color: red !important;",
		"  --gap:",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}
