package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeJudge0 struct {
	mu          sync.Mutex
	submitCode  int
	pollCode    int
	statuses    []int
	stdout      string
	stderr      string
	compile     string
	polls       []time.Time
	submitted   judge0Request
	submitCalls int
	headers     http.Header
}

func (f *fakeJudge0) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitCalls++
		f.headers = r.Header.Clone()
		if r.URL.Query().Get("base64_encoded") != "true" {
			t.Errorf("expected base64 encoding")
		}
		if err := json.NewDecoder(r.Body).Decode(&f.submitted); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		if f.submitCode != 0 {
			w.WriteHeader(f.submitCode)
			_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"tok-1"}`))
	})
	mux.HandleFunc("GET /submissions/{token}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.PathValue("token") != "tok-1" {
			t.Errorf("unexpected token %q", r.PathValue("token"))
		}
		f.polls = append(f.polls, time.Now())
		if f.pollCode != 0 {
			w.WriteHeader(f.pollCode)
			return
		}
		idx := len(f.polls) - 1
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		resp := map[string]any{
			"status": map[string]any{"id": f.statuses[idx], "description": "desc"},
		}
		if f.stdout != "" {
			resp["stdout"] = base64.StdEncoding.EncodeToString([]byte(f.stdout))
		}
		if f.stderr != "" {
			resp["stderr"] = base64.StdEncoding.EncodeToString([]byte(f.stderr))
		}
		if f.compile != "" {
			resp["compile_output"] = base64.StdEncoding.EncodeToString([]byte(f.compile))
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestJudge0(t *testing.T, fake *fakeJudge0, interval time.Duration) *Judge0 {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	client, err := NewJudge0(Judge0Config{
		BaseURL:      srv.URL,
		APIKey:       "key",
		APIHost:      "judge0-ce.p.rapidapi.com",
		PollInterval: interval,
	})
	if err != nil {
		t.Fatalf("new judge0: %v", err)
	}
	return client
}

func TestJudge0AcceptedOnKthPoll(t *testing.T) {
	for k := 1; k <= DefaultMaxPolls; k += 3 {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			statuses := make([]int, 0, k)
			for i := 1; i < k; i++ {
				statuses = append(statuses, int(StatusProcessing))
			}
			statuses = append(statuses, int(StatusAccepted))
			fake := &fakeJudge0{statuses: statuses, stdout: "hello\n"}
			interval := 5 * time.Millisecond
			client := newTestJudge0(t, fake, interval)

			start := time.Now()
			out := client.Execute(context.Background(), Submission{Language: Language{ID: 71}, Source: "print('hello')", Stdin: "in"})
			if out.Text != "hello" || out.IsError {
				t.Fatalf("unexpected outcome: %#v", out)
			}
			if len(fake.polls) != k {
				t.Fatalf("expected %d polls, got %d", k, len(fake.polls))
			}
			if elapsed := fake.polls[0].Sub(start); elapsed < interval {
				t.Fatalf("first poll must wait the interval, waited %s", elapsed)
			}
			for i := 1; i < len(fake.polls); i++ {
				if gap := fake.polls[i].Sub(fake.polls[i-1]); gap < interval {
					t.Fatalf("polls %d and %d spaced %s < %s", i-1, i, gap, interval)
				}
			}
		})
	}
}

func TestJudge0SubmissionPayload(t *testing.T) {
	fake := &fakeJudge0{statuses: []int{int(StatusAccepted)}}
	client := newTestJudge0(t, fake, time.Millisecond)

	out := client.Execute(context.Background(), Submission{Language: Language{ID: 62}, Source: "class Main {}", Stdin: "42"})
	if out.Text != "No output." {
		t.Fatalf("expected placeholder, got %q", out.Text)
	}
	if fake.submitted.LanguageID != 62 || fake.submitted.CPUTimeLimit != 5 || fake.submitted.MemoryLimit != DefaultMemoryLimitKB {
		t.Fatalf("unexpected submission: %#v", fake.submitted)
	}
	src, _ := base64.StdEncoding.DecodeString(fake.submitted.SourceCode)
	stdin, _ := base64.StdEncoding.DecodeString(fake.submitted.Stdin)
	if string(src) != "class Main {}" || string(stdin) != "42" {
		t.Fatalf("unexpected encoded fields: %q %q", src, stdin)
	}
	if fake.headers.Get("X-RapidAPI-Key") != "key" || fake.headers.Get("X-RapidAPI-Host") == "" {
		t.Fatalf("expected rapidapi headers, got %v", fake.headers)
	}
}

func TestJudge0StuckProcessing(t *testing.T) {
	fake := &fakeJudge0{statuses: []int{int(StatusInQueue), int(StatusProcessing)}}
	client := newTestJudge0(t, fake, time.Millisecond)

	out := client.Execute(context.Background(), Submission{Language: Language{ID: 71}, Source: "while True: pass"})
	if len(fake.polls) != DefaultMaxPolls {
		t.Fatalf("expected %d polls, got %d", DefaultMaxPolls, len(fake.polls))
	}
	if !out.IsError || !strings.Contains(out.Text, "still processing") {
		t.Fatalf("unexpected outcome: %#v", out)
	}
}

func TestJudge0CompilationError(t *testing.T) {
	fake := &fakeJudge0{statuses: []int{int(StatusCompilationError)}, compile: "Main.java:1: error: ';' expected"}
	client := newTestJudge0(t, fake, time.Millisecond)

	out := client.Execute(context.Background(), Submission{Language: Language{ID: 62}, Source: "class"})
	if !out.IsError || out.Text != "Main.java:1: error: ';' expected" {
		t.Fatalf("unexpected outcome: %#v", out)
	}
}

func TestJudge0RuntimeErrorIncludesStderr(t *testing.T) {
	fake := &fakeJudge0{statuses: []int{int(StatusRuntimeNZEC)}, stderr: "Traceback: boom"}
	client := newTestJudge0(t, fake, time.Millisecond)

	out := client.Execute(context.Background(), Submission{Language: Language{ID: 71}, Source: "raise SystemExit(1)"})
	if !out.IsError || !strings.Contains(out.Text, "non-zero exit code") || !strings.Contains(out.Text, "Traceback: boom") {
		t.Fatalf("unexpected outcome: %#v", out)
	}
}

func TestJudge0SubmitHTTPError(t *testing.T) {
	fake := &fakeJudge0{submitCode: http.StatusTooManyRequests}
	client := newTestJudge0(t, fake, time.Millisecond)

	out := client.Execute(context.Background(), Submission{Language: Language{ID: 71}, Source: "1"})
	if !out.IsError || !strings.HasPrefix(out.Text, "Remote execution") || !strings.Contains(out.Text, "429") {
		t.Fatalf("unexpected outcome: %#v", out)
	}
	if len(fake.polls) != 0 {
		t.Fatalf("failed submission must not be polled")
	}
}

func TestJudge0PollHTTPError(t *testing.T) {
	fake := &fakeJudge0{statuses: []int{int(StatusAccepted)}, pollCode: http.StatusBadGateway}
	client := newTestJudge0(t, fake, time.Millisecond)

	out := client.Execute(context.Background(), Submission{Language: Language{ID: 71}, Source: "1"})
	if !out.IsError || !strings.Contains(out.Text, "502") {
		t.Fatalf("unexpected outcome: %#v", out)
	}
	if len(fake.polls) != 1 {
		t.Fatalf("expected polling to stop after the failure, got %d polls", len(fake.polls))
	}
}

func TestJudge0MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()
	client, err := NewJudge0(Judge0Config{BaseURL: srv.URL, PollInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("new judge0: %v", err)
	}
	out := client.Execute(context.Background(), Submission{Language: Language{ID: 71}, Source: "1"})
	if !out.IsError || !strings.Contains(out.Text, "invalid response") {
		t.Fatalf("unexpected outcome: %#v", out)
	}
}

func TestJudge0Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := NewJudge0(Judge0Config{BaseURL: base, PollInterval: time.Millisecond, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new judge0: %v", err)
	}
	out := client.Execute(context.Background(), Submission{Language: Language{ID: 71}, Source: "1"})
	if !out.IsError || !strings.Contains(out.Text, "unreachable") {
		t.Fatalf("unexpected outcome: %#v", out)
	}
}

func TestJudge0CancelledContext(t *testing.T) {
	fake := &fakeJudge0{statuses: []int{int(StatusProcessing)}}
	client := newTestJudge0(t, fake, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := client.Execute(ctx, Submission{Language: Language{ID: 71}, Source: "1"})
	if !out.IsError || !strings.Contains(out.Text, "timed out") {
		t.Fatalf("unexpected outcome: %#v", out)
	}
}

func TestNewJudge0Validation(t *testing.T) {
	if _, err := NewJudge0(Judge0Config{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
	if _, err := NewJudge0(Judge0Config{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}
