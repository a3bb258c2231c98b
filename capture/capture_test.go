// ABOUTME: Tests for dictation commands, the stream recognizer, location and clipboard helpers
// ABOUTME: Capability failures must degrade to messages, never errors that stop the form
package capture

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/touchpoint/config"
	"github.com/harperreed/touchpoint/models"
)

func TestApplyTranscript(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		transcript string
		want       string
	}{
		{"punctuation words", "", "hello comma world period how are you question mark", "Hello, world. How are you?"},
		{"appends with a space", "Met with Dana", "she liked the demo full stop", "Met with Dana she liked the demo."},
		{"colon and exclamation", "", "agenda colon pricing exclamation mark", "Agenda: pricing!"},
		{"new line", "First point", "new line second point", "First point\nsecond point"},
		{"new paragraph", "Done.", "new paragraph next steps", "Done.\n\nNext steps"},
		{"clear text", "old notes", "clear text fresh start", "Fresh start"},
		{"case and trailing punctuation on commands", "", "yes Period", "Yes."},
		{"empty transcript", "keep", "   ", "keep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyTranscript(tt.current, tt.transcript))
		})
	}
}

func TestDictationPreviewsInterimOnly(t *testing.T) {
	d := Dictation{Text: "Call went well."}

	d.Handle(SpeechEvent{Transcript: "next steps comma"})
	assert.Equal(t, "Call went well.", d.Text)
	assert.Equal(t, "Call went well. Next steps,", d.Preview)

	d.Handle(SpeechEvent{Transcript: "next steps comma send quote", Final: true})
	assert.Equal(t, "Call went well. Next steps, send quote", d.Text)
	assert.Empty(t, d.Preview)

	d.Handle(SpeechEvent{Err: CodeNotAllowed})
	assert.Equal(t, "Microphone access was denied.", d.Message)
	assert.Equal(t, "Call went well. Next steps, send quote", d.Text)
}

func TestErrorCodeMessages(t *testing.T) {
	for _, c := range []ErrorCode{CodeNoSpeech, CodeNotAllowed, CodeNetwork, CodeAborted} {
		assert.NotEmpty(t, c.Message(), c)
	}
	assert.Contains(t, ErrorCode("audio-capture").Message(), "audio-capture")
}

func TestStreamRecognizer(t *testing.T) {
	input := "~hello\nhello world period\n!no-speech\n"
	rec := NewStreamRecognizer(strings.NewReader(input))

	events, err := rec.Start(context.Background())
	require.NoError(t, err)

	var got []SpeechEvent
	for ev := range events {
		got = append(got, ev)
	}
	assert.Equal(t, []SpeechEvent{
		{Transcript: "hello"},
		{Transcript: "hello world period", Final: true},
		{Err: CodeNoSpeech},
	}, got)
}

func TestStreamRecognizerStop(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	rec := NewStreamRecognizer(pr)

	events, err := rec.Start(context.Background())
	require.NoError(t, err)
	rec.Stop()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after Stop")
	}
}

func TestStreamRecognizerRestartKeepsNextLine(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	rec := NewStreamRecognizer(pr)

	first, err := rec.Start(context.Background())
	require.NoError(t, err)
	rec.Stop()
	for range first {
	}

	second, err := rec.Start(context.Background())
	require.NoError(t, err)
	defer rec.Stop()

	go func() {
		_, _ = io.WriteString(pw, "hello there\nsecond line\n")
	}()

	var got []string
	for len(got) < 2 {
		select {
		case ev, ok := <-second:
			require.True(t, ok, "events closed early")
			got = append(got, ev.Transcript)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %v", got)
		}
	}
	assert.Equal(t, []string{"hello there", "second line"}, got)
}

func TestWaitForSpeech(t *testing.T) {
	ch := make(chan SpeechEvent, 1)
	ch <- SpeechEvent{Transcript: "hi", Final: true}
	close(ch)

	assert.Equal(t, SpeechMsg{Event: SpeechEvent{Transcript: "hi", Final: true}}, WaitForSpeech(ch)())
	assert.Equal(t, SpeechMsg{Done: true}, WaitForSpeech(ch)())
}

func TestUnsupportedRecognizer(t *testing.T) {
	_, err := Unsupported{}.Start(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, Explain(err), "Not available")
}

type deniedLocator struct{}

func (deniedLocator) CurrentPosition(context.Context) (Position, error) {
	return Position{}, ErrPermissionDenied
}

func TestFillLocation(t *testing.T) {
	loc := NewStaticLocator(&config.Location{Latitude: 41.8781, Longitude: -87.6298, Label: "Chicago office"})
	value, msg := FillLocation(context.Background(), loc)
	assert.Equal(t, "Chicago office (41.87810, -87.62980)", value)
	assert.Empty(t, msg)

	value, msg = FillLocation(context.Background(), NewStaticLocator(nil))
	assert.Empty(t, value)
	assert.Equal(t, Explain(ErrUnsupported), msg)

	value, msg = FillLocation(context.Background(), deniedLocator{})
	assert.Empty(t, value)
	assert.Contains(t, msg, "denied")
}

type memClipboard struct {
	text string
	err  error
}

func (m *memClipboard) WriteAll(text string) error {
	if m.err != nil {
		return m.err
	}
	m.text = text
	return nil
}

func TestCopySummary(t *testing.T) {
	cb := &memClipboard{}
	in := models.Interaction{
		Type:             models.TypeDemo,
		Title:            "Platform demo",
		Status:           models.StatusCompleted,
		Outcome:          models.OutcomePositive,
		OrganizationName: "Acme",
	}
	text, err := CopySummary(cb, in)
	require.NoError(t, err)
	assert.Equal(t, text, cb.text)
	assert.Contains(t, text, "Platform demo")
	assert.Contains(t, text, "with Acme")

	cb.err = errors.New("no xclip")
	_, err = CopySummary(cb, in)
	assert.Error(t, err)
}
