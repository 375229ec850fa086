package confirmer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// StaticConfirmer - заранее принятое решение (флаг -yes или ALLOW_EXISTING_OUTPUT)
type StaticConfirmer struct {
	Allow bool
}

func (c StaticConfirmer) Confirm(context.Context, string) (bool, error) {
	return c.Allow, nil
}

// PromptConfirmer задает вопрос в терминале и ждет y/n
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *PromptConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s [y/n]: ", question)

		line, err := c.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			// ввод закончился без ответа - считаем отказом
			if err == io.EOF {
				return false, nil
			}
			return false, fmt.Errorf("read confirmation: %w", err)
		}
	}
}
