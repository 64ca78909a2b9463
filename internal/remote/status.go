package remote

import (
	"fmt"
	"strings"
)

// StatusID - код статуса submission в Judge0.
type StatusID int

const (
	StatusInQueue           StatusID = 1
	StatusProcessing        StatusID = 2
	StatusAccepted          StatusID = 3
	StatusWrongAnswer       StatusID = 4
	StatusTimeLimitExceeded StatusID = 5
	StatusCompilationError  StatusID = 6
	StatusRuntimeSIGSEGV    StatusID = 7
	StatusRuntimeSIGXFSZ    StatusID = 8
	StatusRuntimeSIGFPE     StatusID = 9
	StatusRuntimeSIGABRT    StatusID = 10
	StatusRuntimeNZEC       StatusID = 11
	StatusRuntimeOther      StatusID = 12
	StatusInternalError     StatusID = 13
	StatusExecFormatError   StatusID = 14
)

// Pending сообщает, что submission еще не завершена.
func (s StatusID) Pending() bool {
	return s == StatusInQueue || s == StatusProcessing
}

func (s StatusID) String() string {
	switch s {
	case StatusInQueue:
		return "in_queue"
	case StatusProcessing:
		return "processing"
	case StatusAccepted:
		return "accepted"
	case StatusWrongAnswer:
		return "wrong_answer"
	case StatusTimeLimitExceeded:
		return "time_limit_exceeded"
	case StatusCompilationError:
		return "compilation_error"
	case StatusRuntimeSIGSEGV, StatusRuntimeSIGXFSZ, StatusRuntimeSIGFPE, StatusRuntimeSIGABRT, StatusRuntimeNZEC, StatusRuntimeOther:
		return "runtime_error"
	case StatusInternalError:
		return "internal_error"
	case StatusExecFormatError:
		return "exec_format_error"
	default:
		return fmt.Sprintf("status_%d", int(s))
	}
}

var runtimeErrorMessages = map[StatusID]string{
	StatusRuntimeSIGSEGV: "Runtime error: segmentation fault (SIGSEGV).",
	StatusRuntimeSIGXFSZ: "Runtime error: output file size limit exceeded (SIGXFSZ).",
	StatusRuntimeSIGFPE:  "Runtime error: floating point exception (SIGFPE).",
	StatusRuntimeSIGABRT: "Runtime error: program aborted (SIGABRT).",
	StatusRuntimeNZEC:    "Runtime error: program exited with a non-zero exit code.",
	StatusRuntimeOther:   "Runtime error.",
}

// Report - поля завершенной submission, нужные для ответа.
type Report struct {
	Status        StatusID
	Description   string
	Stdout        string
	Stderr        string
	CompileOutput string
	Message       string
}

// Describe переводит статус Judge0 в текст для пользователя; отображение тотально.
func Describe(r Report, limits Limits) Outcome {
	limits = limits.withDefaults()
	out := Outcome{Status: r.Status.String()}
	switch r.Status {
	case StatusAccepted, StatusWrongAnswer:
		out.Text = orPlaceholder(r.Stdout)
	case StatusTimeLimitExceeded:
		out.Text = fmt.Sprintf("Time limit exceeded: the program ran longer than %s of CPU time.", limits.CPUTime)
		out.IsError = true
	case StatusCompilationError:
		text := strings.TrimSpace(r.CompileOutput)
		if text == "" {
			text = "Compilation error."
		}
		out.Text = text
		out.IsError = true
	case StatusRuntimeSIGSEGV, StatusRuntimeSIGXFSZ, StatusRuntimeSIGFPE, StatusRuntimeSIGABRT, StatusRuntimeNZEC, StatusRuntimeOther:
		out.Text = withDetails(runtimeErrorMessages[r.Status], r.Stderr)
		out.IsError = true
	case StatusInternalError:
		out.Text = withDetails("Internal error of the execution service, please try again later.", r.Message)
		out.IsError = true
	case StatusExecFormatError:
		out.Text = "Execution failed: the service could not run the compiled program (exec format error)."
		out.IsError = true
	case StatusInQueue, StatusProcessing:
		out.Text = "Execution is still processing, try again later."
		out.IsError = true
	default:
		msg := fmt.Sprintf("Unexpected execution status %d.", int(r.Status))
		if desc := strings.TrimSpace(r.Description); desc != "" {
			msg = fmt.Sprintf("Unexpected execution status %d (%s).", int(r.Status), desc)
		}
		out.Text = withDetails(msg, r.Stderr)
		out.IsError = true
	}
	return out
}

func withDetails(msg, details string) string {
	details = strings.TrimSpace(details)
	if details == "" {
		return msg
	}
	return msg + "\n" + details
}
