/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package cards loads, validates and stores the question bank: one list of
// cards per die face, plus the prompts used for the special board zones.
package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Categories is the number of die faces, and so of card categories.
const Categories = 6

var validate = validator.New()

// Card is a single question.
type Card struct {
	Question    string `json:"question" yaml:"question" validate:"required,max=1000"`
	Instruction string `json:"instruction" yaml:"instruction" validate:"max=1000"`
}

// Zones holds the prompts for the special board zones.
type Zones struct {
	Grams       string `json:"grams,omitempty" yaml:"grams,omitempty" validate:"max=1000"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" validate:"max=1000"`
	Allergy     string `json:"allergy,omitempty" yaml:"allergy,omitempty" validate:"max=1000"`
}

// Deck is the on-disk and on-wire form of the question bank. Category keys
// are the die faces "1" through "6".
type Deck struct {
	Categories map[string][]Card `json:"categories" yaml:"categories" validate:"required,dive,keys,oneof=1 2 3 4 5 6,endkeys,dive"`
	Zones      Zones             `json:"zones" yaml:"zones"`
}

// Validate checks field constraints and that every category has a card.
func (d Deck) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid deck: %w", err)
	}
	for i := 1; i <= Categories; i++ {
		if len(d.Categories[strconv.Itoa(i)]) == 0 {
			return fmt.Errorf("invalid deck: category %d has no cards", i)
		}
	}
	return nil
}

// Bank is the live question bank. It is safe for concurrent use.
type Bank struct {
	mu   sync.RWMutex
	path string
	deck Deck
}

// NewBank returns a bank holding deck, persisted to path on Save.
func NewBank(path string, deck Deck) *Bank {
	return &Bank{path: path, deck: deck}
}

// Load reads the deck at path. A missing file yields the built-in demo deck.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewBank(path, DemoDeck()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cards %q: %w", path, err)
	}

	deck, err := Decode(path, data)
	if err != nil {
		return nil, err
	}

	return NewBank(path, deck), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Decode parses data as YAML when path has a YAML extension, JSON otherwise,
// and validates the result.
func Decode(path string, data []byte) (Deck, error) {
	var deck Deck
	var err error
	if isYAML(path) {
		err = yaml.Unmarshal(data, &deck)
	} else {
		err = json.Unmarshal(data, &deck)
	}
	if err != nil {
		return Deck{}, fmt.Errorf("parsing cards %q: %w", path, err)
	}

	if err := deck.Validate(); err != nil {
		return Deck{}, err
	}
	return deck, nil
}

// Deck returns a deep copy of the current deck.
func (b *Bank) Deck() Deck {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := Deck{
		Categories: make(map[string][]Card, len(b.deck.Categories)),
		Zones:      b.deck.Zones,
	}
	for k, v := range b.deck.Categories {
		out.Categories[k] = append([]Card(nil), v...)
	}
	return out
}

// Pick returns a uniformly random card of the given category, using intn to
// draw. ok is false when the category is empty.
func (b *Bank) Pick(category int, intn func(n int) int) (Card, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	deck := b.deck.Categories[strconv.Itoa(category)]
	if len(deck) == 0 {
		return Card{}, false
	}
	return deck[intn(len(deck))], true
}

// Save validates deck, writes it to the bank's path and swaps it in. The
// file is replaced atomically; on any error the previous deck stays live.
func (b *Bank) Save(deck Deck) error {
	if err := deck.Validate(); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(b.path) {
		data, err = yaml.Marshal(deck)
	} else {
		data, err = json.MarshalIndent(deck, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding cards: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.path != "" {
		if err := writeFileAtomic(b.path, data); err != nil {
			return err
		}
	}

	b.deck = deck
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".cards-*")
	if err != nil {
		return fmt.Errorf("saving cards: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("saving cards: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving cards: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving cards: %w", err)
	}
	return nil
}
