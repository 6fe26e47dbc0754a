// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Deck is an ordered collection of cards.
type Deck struct {
	Name  string  `json:"name"`
	Cards []*Card `json:"cards"`
}

// LoadDeck reads a deck from a JSON document.
func LoadDeck(r io.Reader) (*Deck, error) {
	deck := new(Deck)
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(deck); err != nil {
		return nil, fmt.Errorf("invalid deck file: %w", err)
	}

	if len(deck.Cards) == 0 {
		return nil, errors.New("deck contains no cards")
	}

	for i, c := range deck.Cards {
		if c.Title == "" {
			return nil, fmt.Errorf("card %d has no title", i)
		}
		if _, err := ParseKind(string(c.Kind)); err != nil {
			return nil, fmt.Errorf("card %d (%s): %w", i, c.Title, err)
		}
		if c.UID == "" {
			c.UID = fmt.Sprintf("card-%03d", i+1)
		}
	}

	return deck, nil
}

// OpenDeck loads a deck from a file. Relative artwork paths are
// resolved against the deck file's directory.
func OpenDeck(name string) (*Deck, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close() //nolint:errcheck

	deck, err := LoadDeck(fd)
	if err != nil {
		return nil, err
	}

	root := filepath.Dir(name)
	for _, c := range deck.Cards {
		if c.Artwork != "" && !filepath.IsAbs(c.Artwork) {
			c.Artwork = filepath.Join(root, c.Artwork)
		}
	}

	return deck, nil
}
