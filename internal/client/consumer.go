package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dfeirstein/the-skin-lab/internal/domain/analysis"
)

// State is where a Consumer is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateResult
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting-result"
	case StateResult:
		return "result"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNoTerminal means the stream closed before a result or error event.
var ErrNoTerminal = errors.New("stream ended without a result")

// AnalysisError is an error reported by the server, either as a JSON body
// before the stream or as an error event inside it.
type AnalysisError struct {
	Status  int
	Message string
}

func (e *AnalysisError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("analysis failed (%d): %s", e.Status, e.Message)
	}
	return "analysis failed: " + e.Message
}

// Outcome is a successful analysis.
type Outcome struct {
	Analysis json.RawMessage
	// Text is the concatenated content events.
	Text string
}

// Result decodes the analysis into its typed form.
func (o *Outcome) Result() (*analysis.Result, error) {
	return analysis.DecodeResult(o.Analysis)
}

// Consumer reads one analysis event stream.
type Consumer struct {
	// OnContent receives each content fragment as it arrives.
	OnContent func(fragment string)

	state State
	text  strings.Builder
}

func NewConsumer(onContent func(string)) *Consumer {
	return &Consumer{OnContent: onContent}
}

func (c *Consumer) State() State {
	return c.state
}

// Consume reads r until a terminal event or end of input. Blocks are
// separated by a blank line; only `data: ` lines carry payloads.
func (c *Consumer) Consume(r io.Reader) (*Outcome, error) {
	c.state = StateAwaiting
	c.text.Reset()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	scanner.Split(splitBlocks)

	for scanner.Scan() {
		for _, line := range strings.Split(scanner.Text(), "\n") {
			payload, ok := strings.CutPrefix(strings.TrimSuffix(line, "\r"), "data: ")
			if !ok {
				continue
			}
			outcome, done, err := c.handle(payload)
			if done {
				return outcome, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		c.state = StateError
		return nil, fmt.Errorf("read stream: %w", err)
	}

	c.state = StateError
	return nil, ErrNoTerminal
}

func (c *Consumer) handle(payload string) (*Outcome, bool, error) {
	var ev analysis.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		c.state = StateError
		return nil, true, fmt.Errorf("decode event: %w", err)
	}

	switch {
	case ev.Error != "":
		c.state = StateError
		return nil, true, &AnalysisError{Message: ev.Error}
	case ev.Done && len(ev.Analysis) > 0:
		c.state = StateResult
		return &Outcome{Analysis: ev.Analysis, Text: c.text.String()}, true, nil
	case ev.Content != "":
		c.text.WriteString(ev.Content)
		if c.OnContent != nil {
			c.OnContent(ev.Content)
		}
	}
	return nil, false, nil
}

// splitBlocks yields the text between "\n\n" separators. A trailing partial
// block is returned at EOF so its data lines are still seen.
func splitBlocks(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
