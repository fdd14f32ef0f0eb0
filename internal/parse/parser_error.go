package parse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bufbuild/protocompile/reporter"
	"github.com/fatih/color"
)

// ParsingError is a front-end failure located in a source file. Line and
// Column are 1-based; zero means unknown.
type ParsingError struct {
	Message  string
	Filename string
	Line     int
	Column   int
	Content  string
}

func getContentForError(content string, lineNumber int, characterPos int) string {

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = line + "\n"
	}

	if lineNumber < 0 || lineNumber > len(lines)-1 {
		return ""
	}

	linesBeforeAndAfter := 2

	lineStart := lineNumber - linesBeforeAndAfter
	if lineStart < 0 {
		lineStart = 0
	}
	lineEnd := lineNumber + linesBeforeAndAfter
	if lineEnd > len(lines)-1 {
		lineEnd = len(lines) - 1
	}

	numStr := strconv.Itoa(lineEnd + 1)
	numDigits := len(numStr)

	lineFmt := fmt.Sprintf("%%%dd", numDigits)

	red := color.New(color.FgRed).SprintFunc()

	res := ""
	for i := lineStart; i <= lineEnd; i++ {
		prefix := fmt.Sprintf(lineFmt, i+1)
		if i == lineNumber {
			underline := len(strings.TrimRight(lines[i], "\n")) - characterPos - 1
			if underline < 0 {
				underline = 0
			}
			res += red(fmt.Sprintf("%s | %s", prefix, lines[i]))
			res += red(strings.Repeat(" ", len(prefix)) + " | " + strings.Repeat(" ", characterPos) + "^" + strings.Repeat("~", underline) + "\n")
		} else {
			res += fmt.Sprintf("%s | %s", prefix, lines[i])
		}
	}
	return res
}

func (p *ParsingError) Error() string {

	msg := p.Message

	if p.Filename != "" {
		msg += fmt.Sprintf(", file: %s", p.Filename)
	}
	if p.Line > 0 {
		msg += fmt.Sprintf(", line: %d, character: %d", p.Line, p.Column)
		if p.Content != "" {
			msg += fmt.Sprintf("\n%s", getContentForError(p.Content, p.Line-1, max(p.Column-1, 0)))
		}
	}

	return msg
}

// newParsingError converts a compiler error into a ParsingError, using
// content to look up the source of the failing file.
func newParsingError(err error, content func(filename string) string) *ParsingError {
	var perr *ParsingError
	if errors.As(err, &perr) {
		return perr
	}

	var posErr reporter.ErrorWithPos
	if !errors.As(err, &posErr) {
		return &ParsingError{
			Message: err.Error(),
		}
	}

	msg := err.Error()
	if cause := posErr.Unwrap(); cause != nil {
		msg = cause.Error()
	}

	pos := posErr.GetPosition()
	return &ParsingError{
		Message:  msg,
		Filename: pos.Filename,
		Line:     pos.Line,
		Column:   pos.Col,
		Content:  content(pos.Filename),
	}
}
