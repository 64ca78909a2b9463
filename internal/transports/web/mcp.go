package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"codebot/internal/core"
)

// runCodeInput - аргументы MCP-инструмента run_code.
type runCodeInput struct {
	Language string `json:"language,omitempty" jsonschema:"language identifier, python when empty"`
	Source   string `json:"source" jsonschema:"program source code"`
	Stdin    string `json:"stdin,omitempty" jsonschema:"standard input passed to the program"`
}

// runCodeOutput - структурированный результат run_code.
type runCodeOutput struct {
	Language  string `json:"language"`
	Text      string `json:"text"`
	IsError   bool   `json:"is_error"`
	Truncated bool   `json:"truncated"`
}

// mcpHandler обслуживает /mcp. Сервер создается на каждый запрос, чтобы
// инструмент исполнялся от имени subject из bearer-токена.
func (a *Adapter) mcpHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return a.newMCPServer(subjectIDFromContext(r.Context()))
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

func (a *Adapter) newMCPServer(subjectID string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "codebot", Version: a.cfg.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_code",
		Title:       "Run code",
		Description: "Runs a code snippet through the bot pipeline and returns its output.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in runCodeInput) (*mcp.CallToolResult, runCodeOutput, error) {
		lang := core.NormalizeLanguage(orDefault(in.Language))
		res, err := a.mcpSvc.Run(ctx, subjectID, core.CodeRequest{Language: lang, Source: in.Source, Stdin: in.Stdin})
		if err != nil {
			text := toolErrorText(err)
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, runCodeOutput{Language: lang, Text: text, IsError: true}, nil
		}
		text := res.Text
		if text == "" {
			text = core.NoOutput
		}
		return &mcp.CallToolResult{
			IsError: res.IsError,
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, runCodeOutput{Language: lang, Text: text, IsError: res.IsError, Truncated: res.Truncated}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_languages",
		Description: "Lists languages supported by run_code.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, languagesOutput, error) {
		return nil, languagesOutput{Languages: a.mcpSvc.Languages()}, nil
	})

	return server
}

type languagesOutput struct {
	Languages []string `json:"languages"`
}

func toolErrorText(err error) string {
	var unsupported *core.UnsupportedLanguageError
	switch {
	case errors.As(err, &unsupported):
		return unsupported.Message()
	case core.IsAccessDenied(err):
		return "Error: access denied."
	default:
		return "Error: " + err.Error()
	}
}
