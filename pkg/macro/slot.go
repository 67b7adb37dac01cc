package macro

import (
	"fmt"
	"strings"
)

// Slots is the number of macro slots.
const Slots = 10

// Slot is one macro: the text as typed, its mode, and the payload derived
// from both.
type Slot struct {
	text    string
	hex     bool
	payload []byte
}

// NewSlot creates a slot with the given text and mode.
func NewSlot(text string, hex bool) Slot {
	var s Slot
	s.Set(text, hex)
	return s
}

// Set replaces the text and mode and re-encodes the payload. The text is
// limited to a single line of at most MaxTextLen bytes.
func (s *Slot) Set(text string, hex bool) {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > MaxTextLen {
		text = text[:MaxTextLen]
	}
	s.text = text
	s.hex = hex
	s.payload = Encode(text, hex)
}

// SetText changes the text, keeping the mode.
func (s *Slot) SetText(text string) {
	s.Set(text, s.hex)
}

// SetHex changes the mode, keeping the text.
func (s *Slot) SetHex(hex bool) {
	s.Set(s.text, hex)
}

// Text returns the editable text. It is the authoritative form of the macro.
func (s Slot) Text() string {
	return s.text
}

// Hex reports whether the text is interpreted as hex digits.
func (s Slot) Hex() bool {
	return s.hex
}

// Payload returns a copy of the bytes to transmit.
func (s Slot) Payload() []byte {
	out := make([]byte, len(s.payload))
	copy(out, s.payload)
	return out
}

// Len returns the payload length.
func (s Slot) Len() int {
	return len(s.payload)
}

// Mode returns "hex" or "ascii".
func (s Slot) Mode() string {
	if s.hex {
		return "hex"
	}
	return "ascii"
}

// Bank holds the macro slots of a session.
type Bank struct {
	slots [Slots]Slot
}

// NewBank returns a bank of empty ASCII slots.
func NewBank() *Bank {
	return &Bank{}
}

// ErrSlotRange is returned for slot numbers outside 0..Slots-1.
type ErrSlotRange int

func (e ErrSlotRange) Error() string {
	return fmt.Sprintf("macro slot %d out of range (0-%d)", int(e), Slots-1)
}

func checkSlot(i int) error {
	if i < 0 || i >= Slots {
		return ErrSlotRange(i)
	}
	return nil
}

// Slot returns a copy of slot i.
func (b *Bank) Slot(i int) (Slot, error) {
	if err := checkSlot(i); err != nil {
		return Slot{}, err
	}
	return b.slots[i], nil
}

// Set replaces slot i.
func (b *Bank) Set(i int, text string, hex bool) error {
	if err := checkSlot(i); err != nil {
		return err
	}
	b.slots[i].Set(text, hex)
	return nil
}

// Payload returns the bytes of slot i.
func (b *Bank) Payload(i int) ([]byte, error) {
	if err := checkSlot(i); err != nil {
		return nil, err
	}
	return b.slots[i].Payload(), nil
}

// Editor returns a draft copy of the bank. Changes reach the bank only
// through Commit; dropping the editor discards them.
func (b *Bank) Editor() *Editor {
	return &Editor{bank: b, draft: b.slots}
}

// Editor edits a draft of a bank.
type Editor struct {
	bank  *Bank
	draft [Slots]Slot
}

// Set replaces slot i of the draft.
func (e *Editor) Set(i int, text string, hex bool) error {
	if err := checkSlot(i); err != nil {
		return err
	}
	e.draft[i].Set(text, hex)
	return nil
}

// Slot returns slot i of the draft.
func (e *Editor) Slot(i int) (Slot, error) {
	if err := checkSlot(i); err != nil {
		return Slot{}, err
	}
	return e.draft[i], nil
}

// Commit copies the draft into the bank and persists it when store is not
// nil.
func (e *Editor) Commit(store Store) error {
	e.bank.slots = e.draft
	if store == nil {
		return nil
	}
	if err := store.Save(e.bank); err != nil {
		return fmt.Errorf("failed to save macros: %w", err)
	}
	return nil
}
