// ABOUTME: Dictation support: spoken punctuation commands and recognizer plumbing
// ABOUTME: Final transcripts edit the field; interim ones are only previewed
package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	// ErrUnsupported means the capability is not available on this machine.
	ErrUnsupported = errors.New("capability not available")
	// ErrPermissionDenied means the user or the OS refused access.
	ErrPermissionDenied = errors.New("permission denied")
)

// Explain turns a capability failure into a message for the status line.
func Explain(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "Not available here; type the value instead"
	case errors.Is(err, ErrPermissionDenied):
		return "Access was denied; allow it in your system settings to use this"
	default:
		return "Could not complete: " + err.Error()
	}
}

type phrase struct {
	words []string
	text  string
	clear bool
}

// Longer phrases come first so "new paragraph" wins over any single word.
var phrases = []phrase{
	{words: []string{"clear", "text"}, clear: true},
	{words: []string{"new", "paragraph"}, text: "\n\n"},
	{words: []string{"new", "line"}, text: "\n"},
	{words: []string{"full", "stop"}, text: "."},
	{words: []string{"question", "mark"}, text: "?"},
	{words: []string{"exclamation", "mark"}, text: "!"},
	{words: []string{"exclamation", "point"}, text: "!"},
	{words: []string{"period"}, text: "."},
	{words: []string{"comma"}, text: ","},
	{words: []string{"colon"}, text: ":"},
}

func matchPhrase(words []string) (phrase, int) {
	for _, p := range phrases {
		if len(words) < len(p.words) {
			continue
		}
		ok := true
		for i, w := range p.words {
			if !strings.EqualFold(strings.TrimFunc(words[i], unicode.IsPunct), w) {
				ok = false
				break
			}
		}
		if ok {
			return p, len(p.words)
		}
	}
	return phrase{}, 0
}

// ApplyTranscript appends a final transcript to current, turning spoken
// punctuation into symbols. "clear text" empties the field first.
func ApplyTranscript(current, transcript string) string {
	var b strings.Builder
	b.WriteString(current)

	words := strings.Fields(transcript)
	for i := 0; i < len(words); {
		if p, n := matchPhrase(words[i:]); n > 0 {
			if p.clear {
				b.Reset()
			} else {
				s := strings.TrimRight(b.String(), " ")
				b.Reset()
				b.WriteString(s + p.text)
			}
			i += n
			continue
		}

		s := b.String()
		w := words[i]
		if last, _ := utf8.DecodeLastRuneInString(s); s != "" && !unicode.IsSpace(last) {
			b.WriteByte(' ')
		}
		if startsSentence(s) {
			w = capitalize(w)
		}
		b.WriteString(w)
		i++
	}
	return b.String()
}

func startsSentence(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return true
	}
	switch s[len(s)-1] {
	case '.', '?', '!':
		return true
	}
	return false
}

func capitalize(w string) string {
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// ErrorCode is a recognizer failure reason.
type ErrorCode string

const (
	CodeNoSpeech   ErrorCode = "no-speech"
	CodeNotAllowed ErrorCode = "not-allowed"
	CodeNetwork    ErrorCode = "network"
	CodeAborted    ErrorCode = "aborted"
)

func (c ErrorCode) Message() string {
	switch c {
	case CodeNoSpeech:
		return "No speech detected. Try again."
	case CodeNotAllowed:
		return "Microphone access was denied."
	case CodeNetwork:
		return "Speech recognition needs a network connection."
	case CodeAborted:
		return "Dictation stopped."
	default:
		return "Speech recognition failed: " + string(c)
	}
}

type SpeechEvent struct {
	Transcript string
	Final      bool
	Err        ErrorCode
}

// SpeechRecognizer streams transcripts until Stop is called or ctx ends.
// The channel is closed when recognition finishes.
type SpeechRecognizer interface {
	Start(ctx context.Context) (<-chan SpeechEvent, error)
	Stop()
}

// Unsupported is the recognizer used when no speech source is configured.
type Unsupported struct{}

func (Unsupported) Start(context.Context) (<-chan SpeechEvent, error) { return nil, ErrUnsupported }

func (Unsupported) Stop() {}

// StreamRecognizer reads transcripts line by line from an external
// speech-to-text process. A line starting with "~" is interim and one
// starting with "!" carries an error code; anything else is final.
//
// One reader goroutine owns the stream for the recognizer's lifetime;
// Start and Stop only attach and detach a session to it.
type StreamRecognizer struct {
	r     io.Reader
	once  sync.Once
	lines chan string

	mu     sync.Mutex
	cancel context.CancelFunc
	held   []string
}

func NewStreamRecognizer(r io.Reader) *StreamRecognizer {
	return &StreamRecognizer{r: r, lines: make(chan string)}
}

func (s *StreamRecognizer) read() {
	defer close(s.lines)
	sc := bufio.NewScanner(s.r)
	for sc.Scan() {
		s.lines <- sc.Text()
	}
}

// next returns a line held back by a stopped session, if any.
func (s *StreamRecognizer) next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.held) == 0 {
		return "", false
	}
	line := s.held[0]
	s.held = s.held[1:]
	return line, true
}

func (s *StreamRecognizer) hold(line string) {
	s.mu.Lock()
	s.held = append(s.held, line)
	s.mu.Unlock()
}

func (s *StreamRecognizer) Start(ctx context.Context) (<-chan SpeechEvent, error) {
	if s.r == nil {
		return nil, ErrUnsupported
	}
	s.once.Do(func() { go s.read() })

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	events := make(chan SpeechEvent)
	go func() {
		defer close(events)
		for {
			line, ok := s.next()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case line, ok = <-s.lines:
					if !ok {
						return
					}
				}
			}
			select {
			case events <- parseLine(line):
			case <-ctx.Done():
				s.hold(line)
				return
			}
		}
	}()
	return events, nil
}

func (s *StreamRecognizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func parseLine(line string) SpeechEvent {
	switch {
	case strings.HasPrefix(line, "~"):
		return SpeechEvent{Transcript: strings.TrimSpace(line[1:])}
	case strings.HasPrefix(line, "!"):
		return SpeechEvent{Err: ErrorCode(strings.TrimSpace(line[1:]))}
	default:
		return SpeechEvent{Transcript: strings.TrimSpace(line), Final: true}
	}
}

// Dictation is the per-field view of a recognition session.
type Dictation struct {
	Text    string
	Preview string
	Message string
}

// Handle folds one event into the field. Interim text only updates Preview.
func (d *Dictation) Handle(ev SpeechEvent) {
	switch {
	case ev.Err != "":
		d.Preview = ""
		d.Message = ev.Err.Message()
	case ev.Final:
		d.Text = ApplyTranscript(d.Text, ev.Transcript)
		d.Preview = ""
		d.Message = ""
	default:
		d.Preview = ApplyTranscript(d.Text, ev.Transcript)
	}
}

// SpeechMsg delivers one recognizer event to a bubbletea program.
type SpeechMsg struct {
	Event SpeechEvent
	// Done is set once the recognizer's channel has closed.
	Done bool
}

// WaitForSpeech blocks on the next event; re-issue it after each SpeechMsg.
func WaitForSpeech(events <-chan SpeechEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return SpeechMsg{Done: true}
		}
		return SpeechMsg{Event: ev}
	}
}
