package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// repl reads lines from in until EOF, "quit" or "exit" and hands each
// non-empty line to handle. Handler errors are printed and the loop goes on.
func repl(ctx context.Context, in io.Reader, out io.Writer, prompt string, handle func(ctx context.Context, line string) error) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if err := handle(ctx, line); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
