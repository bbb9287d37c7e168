package tts

// EventType identifies a timed event produced during synthesis.
type EventType int

const (
	// EventEnd terminates the event list of a slot.
	EventEnd EventType = iota
	// EventWord marks the start of a word.
	EventWord
	// EventSentence marks the start of a sentence.
	EventSentence
	// EventMark marks a named position embedded in the text.
	EventMark
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventEnd:
		return "end"
	case EventWord:
		return "word"
	case EventSentence:
		return "sentence"
	case EventMark:
		return "mark"
	default:
		return "unknown"
	}
}

// Event is a timed event stored with a slot's audio.
type Event struct {
	Type        EventType
	TextOffset  int    // 0-based byte offset into the caller's text
	Length      int    // byte length of the word or sentence
	ID          int    // engine supplied identifier
	Name        string // mark name
	AudioOffset int    // byte offset into the slot PCM where the event starts
}

// Notification is delivered out of band when playback reaches a boundary.
type Notification struct {
	Kind       EventType
	TextOffset int
	Length     int
	Name       string
	ID         int

	// Text is the word or sentence being reported, empty for marks.
	Text string
}

// Voice describes a voice offered by an engine.
type Voice struct {
	ID       string // Voice identifier passed to the engine
	Name     string // Human-readable name
	Language string // Language code (e.g., "en-us")
	Gender   string // Voice gender, if known
}
