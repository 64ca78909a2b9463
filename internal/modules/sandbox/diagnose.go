package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// exceptionLine совпадает с последней строкой traceback: "ErrorType: message".
var exceptionLine = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*(?:Error|Exception|Exit|Interrupt|Warning))(?::\s*(.*))?$`)

var hints = map[string]string{
	"SyntaxError":         "Check the syntax near the reported line (colons, brackets, quotes).",
	"IndentationError":    "Check that the block is indented consistently with spaces.",
	"TabError":            "Do not mix tabs and spaces for indentation.",
	"NameError":           "A variable or function is used before it is defined; check the spelling.",
	"TypeError":           "An operation got a value of the wrong type; check the arguments.",
	"ValueError":          "A function got an argument with the right type but an invalid value.",
	"ZeroDivisionError":   "Make sure the divisor is not zero.",
	"IndexError":          "The index is out of range; check the length of the sequence.",
	"KeyError":            "The key is missing from the dictionary; use dict.get or check the key.",
	"AttributeError":      "The object has no such attribute; check its type and the attribute name.",
	"ModuleNotFoundError": "Only the Python standard library is available in the sandbox.",
	"ImportError":         "Only the Python standard library is available in the sandbox.",
	"RecursionError":      "The recursion is too deep; add a base case or use a loop.",
	"MemoryError":         "The program ran out of memory; reduce the data size.",
	"EOFError":            "The program reads input; pass it in a second code block tagged stdin.",
}

const defaultHint = "Check your code and try again."

// Diagnose строит текст ошибки: тип и сообщение исключения, traceback и подсказку.
func Diagnose(stderr string, exitCode int64) string {
	trace := strings.TrimSpace(dropBootstrapFrames(stderr))
	if trace == "" {
		return fmt.Sprintf("Program exited with code %d.\nHint: %s", exitCode, defaultHint)
	}

	errType, message := lastException(trace)
	if errType == "" {
		return fmt.Sprintf("Program exited with code %d.\n%s\nHint: %s", exitCode, trace, defaultHint)
	}
	hint, ok := hints[errType]
	if !ok {
		hint = defaultHint
	}
	header := errType
	if message != "" {
		header += ": " + message
	}
	return fmt.Sprintf("%s\n\n%s\n\nHint: %s", header, trace, hint)
}

func lastException(trace string) (string, string) {
	lines := strings.Split(trace, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		m := exceptionLine.FindStringSubmatch(line)
		if m == nil {
			return "", ""
		}
		return m[1], strings.TrimSpace(m[2])
	}
	return "", ""
}

// dropBootstrapFrames убирает из traceback кадры загрузчика, запущенного через -c.
func dropBootstrapFrames(stderr string) string {
	lines := strings.Split(stderr, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), `File "<string>"`) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
