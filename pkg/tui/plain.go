package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/sahilm/fuzzy"

	"github.com/papercomputeco/groqchat/pkg/completion"
	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/llm"
)

const linePrompt = "> "

// lineReader yields one line of input per call and io.EOF at the end.
type lineReader interface {
	ReadLine(prompt string) (string, error)
}

type scannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *scannerReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		fmt.Fprintln(r.out)
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// linerReader edits lines in place on a terminal, with in-memory history.
type linerReader struct {
	state *liner.State
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

// RunPlain is a line-oriented chat loop for non-interactive input. Each line
// is a prompt whose reply is written to out as it streams, except for the
// commands /model <id>, /tokens <n>, /reset, /models and /quit. A line
// starting with "//" is sent as a prompt without its first slash. It returns
// nil at end of input.
func RunPlain(ctx context.Context, in io.Reader, out io.Writer, session *conversation.Session, client completion.Client) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return runLines(ctx, &scannerReader{scanner: scanner, out: out}, out, session, client)
}

// RunLineEditor is RunPlain for a terminal, with line editing and history.
// Ctrl+C at the prompt ends the loop.
func RunLineEditor(ctx context.Context, out io.Writer, session *conversation.Session, client completion.Client) error {
	state := liner.NewLiner()
	defer state.Close()
	state.SetCtrlCAborts(true)
	state.SetCompleter(completeCommand)

	return runLines(ctx, &linerReader{state: state}, out, session, client)
}

func runLines(ctx context.Context, reader lineReader, out io.Writer, session *conversation.Session, client completion.Client) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := reader.ReadLine(linePrompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "//") {
			line = line[1:]
		} else if strings.HasPrefix(line, "/") {
			quit, err := runCommand(out, session, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		_, err = session.Submit(ctx, client, line, func(fragment string) {
			fmt.Fprint(out, fragment)
		})
		fmt.Fprintln(out)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, describeError(err))
		}
	}
}

var commands = []string{"/model", "/models", "/tokens", "/reset", "/quit"}

func completeCommand(line string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	if strings.HasPrefix(line, "/model ") {
		for _, m := range llm.Catalog() {
			candidate := "/model " + m.ID
			if strings.HasPrefix(candidate, line) {
				out = append(out, candidate)
			}
		}
	}
	return out
}

// resolveModel maps a partial model name to a catalog id. Exact ids win;
// otherwise the best fuzzy match is used, and an unmatched query is returned
// as is so selection reports it as unknown.
func resolveModel(query string) string {
	if _, ok := llm.LookupModel(query); ok {
		return query
	}

	catalog := llm.Catalog()
	ids := make([]string, len(catalog))
	for i, m := range catalog {
		ids[i] = m.ID
	}
	if matches := fuzzy.Find(query, ids); len(matches) > 0 {
		return ids[matches[0].Index]
	}
	return query
}

func runCommand(out io.Writer, session *conversation.Session, line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/models":
		current := session.Model().ID
		for _, m := range llm.Catalog() {
			marker := " "
			if m.ID == current {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-26s %-24s %7d  %s\n", marker, m.ID, m.DisplayName, m.MaxContextTokens, m.Developer)
		}
		return false, nil

	case "/model":
		if len(args) != 1 {
			m := session.Model()
			fmt.Fprintf(out, "using %s by %s\n", m.DisplayName, m.Developer)
			return false, nil
		}
		changed, err := session.SelectModel(resolveModel(args[0]))
		if err != nil {
			return false, err
		}
		if changed {
			fmt.Fprintf(out, "switched to %s, transcript cleared, max tokens %d\n", session.Model().DisplayName, session.Budget())
		}
		return false, nil

	case "/tokens":
		if len(args) != 1 {
			fmt.Fprintf(out, "max tokens %d\n", session.Budget())
			return false, nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("invalid token budget %q", args[0])
		}
		budget, err := session.SetBudget(n)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "max tokens %d\n", budget)
		return false, nil

	case "/reset":
		if err := session.Reset(); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "transcript cleared")
		return false, nil
	}

	return false, fmt.Errorf("unknown command %s (start the line with // to send it as a prompt)", name)
}
