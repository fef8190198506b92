package types

import (
	"encoding/json"
	"fmt"
)

// NarrativeStatus discriminates the Narrative sum type.
type NarrativeStatus string

const (
	NarrativeStatusPresent NarrativeStatus = "present"
	NarrativeStatusAbsent  NarrativeStatus = "absent"
)

// Narrative is the optional LLM-generated annex of a report. It is either
// present with text or absent; it never influences numeric output.
type Narrative struct {
	status NarrativeStatus
	text   string
}

// NarrativePresent returns a present narrative carrying text.
func NarrativePresent(text string) Narrative {
	return Narrative{status: NarrativeStatusPresent, text: text}
}

// NarrativeAbsent returns the absent narrative.
func NarrativeAbsent() Narrative {
	return Narrative{status: NarrativeStatusAbsent}
}

// Status returns the narrative status. The zero value is absent.
func (n Narrative) Status() NarrativeStatus {
	if n.status == NarrativeStatusPresent {
		return NarrativeStatusPresent
	}
	return NarrativeStatusAbsent
}

// Text returns the narrative text and whether it is present.
func (n Narrative) Text() (string, bool) {
	if n.Status() != NarrativeStatusPresent {
		return "", false
	}
	return n.text, true
}

type narrativeJSON struct {
	Status NarrativeStatus `json:"status"`
	Text   string          `json:"text,omitempty"`
}

// MarshalJSON encodes {"status":"present","text":...} or {"status":"absent"}.
func (n Narrative) MarshalJSON() ([]byte, error) {
	if text, ok := n.Text(); ok {
		return json.Marshal(narrativeJSON{Status: NarrativeStatusPresent, Text: text})
	}
	return json.Marshal(narrativeJSON{Status: NarrativeStatusAbsent})
}

// UnmarshalJSON rejects unknown statuses and absent narratives carrying text.
func (n *Narrative) UnmarshalJSON(data []byte) error {
	var raw narrativeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case NarrativeStatusPresent:
		*n = NarrativePresent(raw.Text)
	case NarrativeStatusAbsent, "":
		if raw.Text != "" {
			return fmt.Errorf("absent narrative must not carry text")
		}
		*n = NarrativeAbsent()
	default:
		return fmt.Errorf("unknown narrative status %q", raw.Status)
	}
	return nil
}
