// Package input parses newline-separated numeric values.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrUnknownType is returned for a value type other than int or float.
var ErrUnknownType = errors.New("unknown value type")

// Value types accepted by Parser.
const (
	TypeInt   = "int"
	TypeFloat = "float"
)

// ParseError reports a line that could not be parsed.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: cannot parse %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Number is a value type the parser can produce.
type Number interface {
	int64 | float64
}

// ParseFunc parses one trimmed, non-empty line.
type ParseFunc[T Number] func(s string) (T, error)

// ParseInt parses a base-10 int64.
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// ParseFloat parses a float64, including NaN and Inf.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// Parser turns lines into values. Blank lines and lines starting with '#'
// are skipped but still counted for error positions.
type Parser[T Number] struct {
	parse ParseFunc[T]
	line  int
}

// NewParser creates a parser that uses parse for every value line.
func NewParser[T Number](parse ParseFunc[T]) *Parser[T] {
	return &Parser[T]{parse: parse}
}

// Line parses one line. ok is false when the line carries no value.
func (p *Parser[T]) Line(text string) (v T, ok bool, err error) {
	p.line++
	s := strings.TrimSpace(text)
	if s == "" || strings.HasPrefix(s, "#") {
		return v, false, nil
	}
	v, err = p.parse(s)
	if err != nil {
		return v, false, &ParseError{Line: p.line, Text: s, Err: err}
	}
	return v, true, nil
}

// Lines returns the number of lines seen so far.
func (p *Parser[T]) Lines() int {
	return p.line
}

// Scan reads r to the end and calls fn with every value in order. It stops
// at the first parse error or the first error returned by fn.
func (p *Parser[T]) Scan(r io.Reader, fn func(T) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		v, ok, err := p.Line(scanner.Text())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadAll parses every value in r.
func ReadAll[T Number](r io.Reader, parse ParseFunc[T]) ([]T, error) {
	var values []T
	err := NewParser(parse).Scan(r, func(v T) error {
		values = append(values, v)
		return nil
	})
	return values, err
}

// CheckType validates a configured value type name.
func CheckType(name string) error {
	switch name {
	case TypeInt, TypeFloat:
		return nil
	default:
		return fmt.Errorf("%w %q, want %s or %s", ErrUnknownType, name, TypeInt, TypeFloat)
	}
}
