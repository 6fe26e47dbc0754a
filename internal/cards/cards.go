// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package cards provides the card data model and deck loading.
package cards

import (
	"fmt"
)

// Kind is a card kind identifier.
type Kind string

// All the card kinds.
const (
	KindMonster         Kind = "monster"
	KindCurse           Kind = "curse"
	KindClass           Kind = "class"
	KindRace            Kind = "race"
	KindFaithfulServant Kind = "faithful-servant"
	KindDungeonTrap     Kind = "dungeon-trap"
	KindDungeonBonus    Kind = "dungeon-bonus"
	KindItem            Kind = "item"
	KindLevelUp         Kind = "level-up"
	KindTreasureTrap    Kind = "treasure-trap"
	KindOther           Kind = "other"
)

// Category is a card's deck category. There are only two of them,
// matching the two physical draw piles of the game.
type Category string

// The two deck categories.
const (
	CategoryDungeon  Category = "Donjon"
	CategoryTreasure Category = "Tresor"
)

// kindCategories maps every card kind to its deck category.
var kindCategories = map[Kind]Category{
	KindMonster:         CategoryDungeon,
	KindCurse:           CategoryDungeon,
	KindClass:           CategoryDungeon,
	KindRace:            CategoryDungeon,
	KindFaithfulServant: CategoryDungeon,
	KindDungeonTrap:     CategoryDungeon,
	KindDungeonBonus:    CategoryDungeon,
	KindItem:            CategoryTreasure,
	KindLevelUp:         CategoryTreasure,
	KindTreasureTrap:    CategoryTreasure,
	KindOther:           CategoryTreasure,
}

// ParseKind returns the [Kind] matching the given identifier.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindCategories[k]; !ok {
		return "", fmt.Errorf("unknown card kind %q", s)
	}
	return k, nil
}

// Category returns the deck category of a card kind. An unknown kind
// falls in the treasure pile, like [KindOther].
func (k Kind) Category() Category {
	if c, ok := kindCategories[k]; ok {
		return c
	}
	return CategoryTreasure
}

// Card is a single card record. It is immutable for the duration of
// an export session.
type Card struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Reward      string `json:"reward,omitempty"`
	Level       int    `json:"level,omitempty"`
	Bonus       int    `json:"bonus,omitempty"`
	Price       int    `json:"price,omitempty"`
	Artwork     string `json:"artwork,omitempty"`
}

// ID implements export.Item.
func (c *Card) ID() string {
	return c.UID
}

// Name implements export.Item. It returns the card's title.
func (c *Card) Name() string {
	return c.Title
}

// Group implements export.Item. It returns the deck category.
func (c *Card) Group() string {
	return string(c.Kind.Category())
}

// TypeName implements export.Item. It returns the card kind identifier.
func (c *Card) TypeName() string {
	return string(c.Kind)
}
