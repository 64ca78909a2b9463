package core

import (
	"strings"
	"testing"
)

func TestExtractFencedWithTag(t *testing.T) {
	req, ok := Extract("```Python\nprint(1+1)\n```")
	if !ok {
		t.Fatalf("expected fenced block to match")
	}
	if req.Language != "python" || req.Source != "print(1+1)" {
		t.Fatalf("unexpected request: %#v", req)
	}
}

func TestExtractFencedTagLowercased(t *testing.T) {
	cases := map[string]string{
		"```JavaScript\nconsole.log(1)\n```": "javascript",
		"```CPP\nint main(){}\n```":          "cpp",
		"```HTML\n<p>hi</p>\n```":            "html",
	}
	for input, want := range cases {
		req, ok := Extract(input)
		if !ok {
			t.Fatalf("%q: expected match", input)
		}
		if req.Language != want {
			t.Fatalf("%q: expected %s, got %s", input, want, req.Language)
		}
	}
}

func TestExtractFencedWithoutTagDefaultsToPython(t *testing.T) {
	for _, input := range []string{"```\nprint('x')\n```", "```print('x')```"} {
		req, ok := Extract(input)
		if !ok {
			t.Fatalf("%q: expected match", input)
		}
		if req.Language != DefaultLanguage {
			t.Fatalf("%q: expected python, got %s", input, req.Language)
		}
		if req.Source != "print('x')" {
			t.Fatalf("%q: unexpected source %q", input, req.Source)
		}
	}
}

func TestExtractFencedWithStdinBlock(t *testing.T) {
	req, ok := Extract("```go\nfunc main() {}\n```\n```stdin\n1 2\n```")
	if !ok {
		t.Fatalf("expected match")
	}
	if req.Language != "go" || req.Stdin != "1 2" {
		t.Fatalf("unexpected request: %#v", req)
	}
}

func TestExtractPositional(t *testing.T) {
	req, ok := Extract("Ruby puts 1\nputs 2")
	if !ok {
		t.Fatalf("expected positional match")
	}
	if req.Language != "ruby" || req.Source != "puts 1\nputs 2" {
		t.Fatalf("unexpected request: %#v", req)
	}

	req, ok = Extract("python\nprint(3)")
	if !ok || req.Language != "python" || req.Source != "print(3)" {
		t.Fatalf("unexpected newline-separated request: %#v ok=%v", req, ok)
	}
}

func TestExtractMalformedFenceFallsBack(t *testing.T) {
	req, ok := Extract("java ```class A {}")
	if !ok {
		t.Fatalf("expected positional fallback")
	}
	if req.Language != "java" || req.Source != "```class A {}" {
		t.Fatalf("unexpected request: %#v", req)
	}
}

func TestExtractNone(t *testing.T) {
	for _, input := range []string{"", "   ", "python", "```\n\n```", "```"} {
		if req, ok := Extract(input); ok {
			t.Fatalf("%q: expected no match, got %#v", input, req)
		}
	}
}

func TestExtractFencedKeepsUnknownTags(t *testing.T) {
	cases := map[string]string{
		"```Питон\nprint(1)\n```":         "питон",
		"```python:main.py\nprint(1)\n```": "python:main.py",
		"```c++ \nint main(){}\n```":       "c++",
	}
	for input, want := range cases {
		req, ok := Extract(input)
		if !ok {
			t.Fatalf("%q: expected match", input)
		}
		if req.Language != want {
			t.Fatalf("%q: language = %q, want %q", input, req.Language, want)
		}
		if strings.Contains(req.Source, want) || strings.HasPrefix(req.Source, "```") {
			t.Fatalf("%q: tag leaked into source %q", input, req.Source)
		}
	}
}

func TestExtractPositionalAnyFirstToken(t *testing.T) {
	req, ok := Extract("print(1) x")
	if !ok || req.Language != "print(1)" || req.Source != "x" {
		t.Fatalf("unexpected request: %#v ok=%v", req, ok)
	}
}
