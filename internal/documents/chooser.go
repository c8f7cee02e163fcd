package documents

//go:generate mockgen -source=chooser.go -destination=mocks/mock_chooser.go -package=mocks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// ErrSaveCancelled is returned by a PathChooser when the operator declines
// to save a document.
var ErrSaveCancelled = errors.New("save cancelled")

// Proposal describes a document about to be saved.
type Proposal struct {
	Type        types.DocumentType
	Title       string
	DefaultPath string
}

// PathChooser decides where a document is saved.
type PathChooser interface {
	// ChoosePath returns the path to save to, or ErrSaveCancelled.
	ChoosePath(ctx context.Context, p Proposal) (string, error)
}

// AutoChooser always accepts the default path.
type AutoChooser struct{}

// ChoosePath implements PathChooser.
func (AutoChooser) ChoosePath(_ context.Context, p Proposal) (string, error) {
	return p.DefaultPath, nil
}

// PromptChooser asks on a terminal. An empty answer accepts the default,
// "s" or "skip" cancels, anything else is taken as the path.
type PromptChooser struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptChooser creates a PromptChooser.
func NewPromptChooser(in io.Reader, out io.Writer) *PromptChooser {
	return &PromptChooser{in: bufio.NewReader(in), out: out}
}

// ChoosePath implements PathChooser.
func (c *PromptChooser) ChoosePath(ctx context.Context, p Proposal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(c.out, "\nSave %q\n  [%s]\n  Enter to accept, a path to change, s to skip: ", p.Title, p.DefaultPath)

	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	answer := strings.TrimSpace(line)

	switch strings.ToLower(answer) {
	case "":
		if errors.Is(err, io.EOF) && line == "" {
			// Input closed: nobody is there to confirm.
			return "", ErrSaveCancelled
		}
		return p.DefaultPath, nil
	case "s", "skip":
		return "", ErrSaveCancelled
	default:
		return answer, nil
	}
}
