package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

const cssIndent = "  "

var errUnbalancedBraces = errors.New("unbalanced braces")

// FormatCSS печатает таблицу стилей: одно объявление на строку, отступ 2 пробела,
// пустая строка между правилами верхнего уровня.
func FormatCSS(src string) (string, error) {
	if err := checkCSSTokens(src); err != nil {
		return "", err
	}

	p := css.NewParser(parse.NewInputString(src), false)
	out := &cssPrinter{}
	var selectors []string
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && err != io.EOF {
				return "", fmt.Errorf("parse css: %w", err)
			}
			if out.depth != 0 {
				return "", errUnbalancedBraces
			}
			return strings.TrimRight(out.b.String(), "\n"), nil
		case css.CommentGrammar:
			out.line(string(data))
		case css.AtRuleGrammar:
			out.line(joinAt(data, p.Values()) + ";")
		case css.BeginAtRuleGrammar:
			out.open(joinAt(data, p.Values()))
		case css.QualifiedRuleGrammar:
			selectors = append(selectors, strings.TrimSuffix(joinTokens(p.Values()), ","))
		case css.BeginRulesetGrammar:
			selectors = append(selectors, joinTokens(p.Values()))
			out.open(strings.Join(selectors, ", "))
			selectors = selectors[:0]
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			out.close()
		case css.DeclarationGrammar:
			out.line(string(data) + ": " + joinTokens(p.Values()) + ";")
		case css.CustomPropertyGrammar:
			out.line(string(data) + ":" + joinTokens(p.Values()) + ";")
		}
	}
}

// checkCSSTokens отвергает незакрытые строки и несбалансированные фигурные скобки.
func checkCSSTokens(src string) error {
	l := css.NewLexer(parse.NewInputString(src))
	depth := 0
	for {
		tt, _ := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return fmt.Errorf("lex css: %w", err)
			}
			if depth != 0 {
				return errUnbalancedBraces
			}
			return nil
		case css.BadStringToken:
			return errors.New("unterminated string")
		case css.BadURLToken:
			return errors.New("malformed url")
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			if depth == 0 {
				return errUnbalancedBraces
			}
			depth--
		}
	}
}

func joinAt(keyword []byte, values []css.Token) string {
	rest := joinTokens(values)
	if rest == "" {
		return string(keyword)
	}
	return string(keyword) + " " + rest
}

// joinTokens склеивает токены, сжимая пробелы до одного.
func joinTokens(values []css.Token) string {
	var b strings.Builder
	space := false
	for _, v := range values {
		if v.TokenType == css.WhitespaceToken {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.Write(v.Data)
	}
	return b.String()
}

type cssPrinter struct {
	b     strings.Builder
	depth int
}

func (p *cssPrinter) line(s string) {
	p.b.WriteString(strings.Repeat(cssIndent, p.depth))
	p.b.WriteString(s)
	p.b.WriteByte('\n')
}

func (p *cssPrinter) open(header string) {
	if p.depth == 0 && p.b.Len() > 0 {
		p.b.WriteByte('\n')
	}
	p.line(header + " {")
	p.depth++
}

func (p *cssPrinter) close() {
	if p.depth > 0 {
		p.depth--
	}
	p.line("}")
}
