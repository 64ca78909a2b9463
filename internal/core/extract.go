package core

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultLanguage используется для блока кода без тега.
const DefaultLanguage = "python"

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:([^\\s`]*)[ \t]*\r?\n)?(.*?)```")
	lowerCaser  = cases.Lower(language.Und)
)

// NormalizeLanguage приводит идентификатор языка к нижнему регистру.
func NormalizeLanguage(lang string) string {
	return lowerCaser.String(strings.TrimSpace(lang))
}

// Extract разбирает команду в пару (язык, код).
// Форматы: ```lang\ncode``` или "lang code". Второй блок с тегом stdin/input
// передается программе как стандартный ввод. Тег берется как есть, проверку
// языка делает маршрутизатор.
func Extract(command string) (CodeRequest, bool) {
	if req, ok := extractFenced(command); ok {
		return req, true
	}
	return extractPositional(command)
}

func extractFenced(command string) (CodeRequest, bool) {
	matches := fencedBlock.FindAllStringSubmatchIndex(command, -1)
	for i, m := range matches {
		tag := ""
		if m[2] >= 0 {
			tag = command[m[2]:m[3]]
		}
		source := strings.TrimSpace(command[m[4]:m[5]])
		if source == "" {
			continue
		}
		lang := NormalizeLanguage(tag)
		if lang == "" {
			lang = DefaultLanguage
		}
		if isStdinTag(lang) {
			continue
		}
		req := CodeRequest{Language: lang, Source: source}
		if i+1 < len(matches) {
			next := matches[i+1]
			if next[2] >= 0 && isStdinTag(NormalizeLanguage(command[next[2]:next[3]])) {
				req.Stdin = strings.Trim(command[next[4]:next[5]], "\r\n")
			}
		}
		return req, true
	}
	return CodeRequest{}, false
}

func extractPositional(command string) (CodeRequest, bool) {
	text := strings.TrimSpace(command)
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx <= 0 {
		return CodeRequest{}, false
	}
	lang := NormalizeLanguage(text[:idx])
	source := strings.TrimSpace(text[idx:])
	// обратные кавычки в первом токене означают незакрытый блок
	if strings.Contains(lang, "`") || source == "" {
		return CodeRequest{}, false
	}
	return CodeRequest{Language: lang, Source: source}, true
}

func isStdinTag(tag string) bool {
	return tag == "stdin" || tag == "input"
}
