package headless

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/codeturn-ai/opencode/internal/session"
)

// Printer renders a turn's update stream in the configured format.
type Printer struct {
	out    io.Writer
	format OutputFormat
	quiet  bool
}

// NewPrinter creates a printer.
func NewPrinter(out io.Writer, format OutputFormat, quiet bool) *Printer {
	return &Printer{out: out, format: format, quiet: quiet}
}

// Handle renders one update.
func (p *Printer) Handle(env session.Envelope) {
	switch p.format {
	case OutputJSONL:
		p.printJSONL(env)
	case OutputJSON:
		// JSON mode prints only the final result, in Finish.
	default:
		p.printText(env)
	}
}

func (p *Printer) printText(env session.Envelope) {
	switch u := env.Update.(type) {
	case session.ReplyChunk:
		fmt.Fprint(p.out, u.Text)
	case session.ReplyDone:
		fmt.Fprintln(p.out)
	case session.Log:
		if !p.quiet {
			fmt.Fprintf(p.out, "[%s] %s\n", u.Level, u.Message)
		}
	}
}

func (p *Printer) printJSONL(env session.Envelope) {
	line := map[string]any{"session_id": env.SessionID.String()}
	switch u := env.Update.(type) {
	case session.ReplyChunk:
		line["type"] = "chunk"
		line["content"] = u.Text
	case session.ReplyDone:
		line["type"] = "done"
	case session.Log:
		if p.quiet {
			return
		}
		line["type"] = "log"
		line["level"] = u.Level
		line["message"] = u.Message
	}
	if data, err := json.Marshal(line); err == nil {
		fmt.Fprintln(p.out, string(data))
	}
}

// Finish renders the run's result; only JSON mode prints anything here.
func (p *Printer) Finish(result *Result) {
	if p.format != OutputJSON {
		return
	}
	if data, err := json.MarshalIndent(result, "", "  "); err == nil {
		fmt.Fprintln(p.out, string(data))
	}
}
