// Package languages содержит статическую таблицу поддерживаемых языков.
package languages

import "sort"

// Strategy определяет, каким обработчиком обслуживается язык.
type Strategy string

const (
	// StrategySandbox исполняет код в локальной песочнице (Docker).
	StrategySandbox Strategy = "sandbox"
	// StrategyMarkup форматирует код без исполнения.
	StrategyMarkup Strategy = "markup"
	// StrategyRemote отправляет код во внешний сервис исполнения.
	StrategyRemote Strategy = "remote"
)

// Entry описывает один язык каталога.
type Entry struct {
	Name      string
	Fence     string
	Extension string
	Strategy  Strategy
	// Judge0ID - идентификатор компилятора в Judge0 CE (0 - не поддерживается).
	Judge0ID int
	// JDoodle - имя языка и versionIndex в JDoodle ("" - не поддерживается).
	JDoodle        string
	JDoodleVersion string
}

// Remote сообщает, может ли язык исполняться во внешнем сервисе.
func (e Entry) Remote() bool {
	return e.Judge0ID > 0 || e.JDoodle != ""
}

var catalog = []Entry{
	{Name: "python", Fence: "python", Extension: "py", Strategy: StrategySandbox, Judge0ID: 71, JDoodle: "python3", JDoodleVersion: "4"},
	{Name: "html", Fence: "html", Extension: "html", Strategy: StrategyMarkup},
	{Name: "css", Fence: "css", Extension: "css", Strategy: StrategyMarkup},
	{Name: "javascript", Fence: "js", Extension: "js", Strategy: StrategyRemote, Judge0ID: 63, JDoodle: "nodejs", JDoodleVersion: "4"},
	{Name: "typescript", Fence: "ts", Extension: "ts", Strategy: StrategyRemote, Judge0ID: 74, JDoodle: "typescript", JDoodleVersion: "0"},
	{Name: "java", Fence: "java", Extension: "java", Strategy: StrategyRemote, Judge0ID: 62, JDoodle: "java", JDoodleVersion: "3"},
	{Name: "kotlin", Fence: "kotlin", Extension: "kt", Strategy: StrategyRemote, Judge0ID: 78, JDoodle: "kotlin", JDoodleVersion: "2"},
	{Name: "ruby", Fence: "ruby", Extension: "rb", Strategy: StrategyRemote, Judge0ID: 72, JDoodle: "ruby", JDoodleVersion: "3"},
	{Name: "go", Fence: "go", Extension: "go", Strategy: StrategyRemote, Judge0ID: 60, JDoodle: "go", JDoodleVersion: "3"},
	{Name: "c", Fence: "c", Extension: "c", Strategy: StrategyRemote, Judge0ID: 50, JDoodle: "c", JDoodleVersion: "4"},
	{Name: "cpp", Fence: "cpp", Extension: "cpp", Strategy: StrategyRemote, Judge0ID: 54, JDoodle: "cpp17", JDoodleVersion: "0"},
	{Name: "csharp", Fence: "cs", Extension: "cs", Strategy: StrategyRemote, Judge0ID: 51, JDoodle: "csharp", JDoodleVersion: "3"},
	{Name: "rust", Fence: "rust", Extension: "rs", Strategy: StrategyRemote, Judge0ID: 73, JDoodle: "rust", JDoodleVersion: "3"},
	{Name: "php", Fence: "php", Extension: "php", Strategy: StrategyRemote, Judge0ID: 68, JDoodle: "php", JDoodleVersion: "3"},
	{Name: "bash", Fence: "bash", Extension: "sh", Strategy: StrategyRemote, Judge0ID: 46, JDoodle: "bash", JDoodleVersion: "3"},
}

// All возвращает копию каталога, отсортированную по имени.
func All() []Entry {
	out := append([]Entry(nil), catalog...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup ищет язык по имени.
func Lookup(name string) (Entry, bool) {
	for _, e := range catalog {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Extensions возвращает отображение fence-тега в расширение файла.
func Extensions() map[string]string {
	out := make(map[string]string, len(catalog))
	for _, e := range catalog {
		out[e.Fence] = e.Extension
	}
	return out
}
