// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/fogleman/gg"

	"github.com/chichekebbab/cardforge/internal/cards"
)

// Face layout, in pixels.
const (
	faceMargin     = 30.0
	titleBaseline  = 110.0
	bannerBaseline = 185.0
	artTop         = 220.0
	artHeight      = 400.0
	textTop        = 670.0
	textHeight     = 260.0
	statBaseline   = 980.0
)

type faceColors struct {
	paper  [3]int
	frame  [3]int
	ink    [3]int
	banner [3]int
}

var categoryColors = map[cards.Category]faceColors{
	cards.CategoryDungeon: {
		paper:  [3]int{0xe8, 0xdc, 0xc4},
		frame:  [3]int{0x5c, 0x3a, 0x21},
		ink:    [3]int{0x2b, 0x1d, 0x12},
		banner: [3]int{0x8c, 0x2f, 0x24},
	},
	cards.CategoryTreasure: {
		paper:  [3]int{0xf2, 0xe6, 0xc2},
		frame:  [3]int{0x8a, 0x6d, 0x1f},
		ink:    [3]int{0x33, 0x28, 0x0e},
		banner: [3]int{0xb8, 0x8a, 0x1e},
	},
}

// Capture implements [export.Rendered]. It draws the card face in
// its current visual state (missing assets leave their region blank)
// and encodes it as a PNG bitmap.
func (rc *renderedCard) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc.mu.Lock()
	artwork, background := rc.artwork, rc.background
	rc.mu.Unlock()

	card := rc.card
	colors := categoryColors[card.Kind.Category()]
	titleFace, textFace, statFace := rc.r.faces()

	dc := gg.NewContext(faceWidth, faceHeight)

	// Paper and frame.
	if background != nil {
		dc.DrawImage(fitImage(background, faceWidth, faceHeight), 0, 0)
	} else {
		dc.SetRGB255(colors.paper[0], colors.paper[1], colors.paper[2])
		dc.Clear()
	}
	dc.SetRGB255(colors.frame[0], colors.frame[1], colors.frame[2])
	dc.SetLineWidth(12)
	dc.DrawRoundedRectangle(faceMargin, faceMargin,
		faceWidth-2*faceMargin, faceHeight-2*faceMargin, 24)
	dc.Stroke()

	// Title.
	dc.SetFontFace(titleFace)
	dc.SetRGB255(colors.ink[0], colors.ink[1], colors.ink[2])
	dc.DrawStringWrapped(card.Title, faceWidth/2, titleBaseline, 0.5, 0.5,
		faceWidth-4*faceMargin, 1.1, gg.AlignCenter)

	// Kind banner.
	dc.SetRGB255(colors.banner[0], colors.banner[1], colors.banner[2])
	dc.DrawRoundedRectangle(faceWidth/2-160, bannerBaseline-28, 320, 46, 23)
	dc.Fill()
	dc.SetFontFace(textFace)
	dc.SetRGB255(0xff, 0xff, 0xff)
	dc.DrawStringAnchored(kindLabel(card.Kind), faceWidth/2, bannerBaseline-5, 0.5, 0.5)

	// Artwork area.
	if artwork != nil {
		fitted := fitImage(artwork, faceWidth-4*faceMargin, artHeight)
		b := fitted.Bounds()
		dc.DrawImage(fitted,
			(faceWidth-b.Dx())/2,
			int(artTop)+(int(artHeight)-b.Dy())/2,
		)
	}
	dc.SetRGB255(colors.frame[0], colors.frame[1], colors.frame[2])
	dc.SetLineWidth(4)
	dc.DrawRectangle(2*faceMargin, artTop, faceWidth-4*faceMargin, artHeight)
	dc.Stroke()

	// Description.
	dc.SetFontFace(textFace)
	dc.SetRGB255(colors.ink[0], colors.ink[1], colors.ink[2])
	dc.DrawStringWrapped(card.Description, faceWidth/2, textTop+textHeight/2,
		0.5, 0.5, faceWidth-4*faceMargin, 1.3, gg.AlignCenter)

	// Stat line and category footer.
	dc.SetFontFace(statFace)
	if stats := statLine(card); stats != "" {
		dc.DrawStringAnchored(stats, faceWidth/2, statBaseline, 0.5, 0.5)
	}
	dc.SetFontFace(textFace)
	dc.DrawStringAnchored(string(card.Kind.Category()), faceWidth/2,
		faceHeight-faceMargin-20, 0.5, 0.5)

	buf := new(bytes.Buffer)
	if err := dc.EncodePNG(buf); err != nil {
		return nil, fmt.Errorf("encoding card %s: %w", card.UID, err)
	}
	return buf.Bytes(), nil
}

// fitImage scales im down to fit in a w×h box, keeping its aspect
// ratio. Smaller images are kept as they are.
func fitImage(im image.Image, w, h float64) image.Image {
	b := im.Bounds()
	sw, sh := float64(b.Dx()), float64(b.Dy())
	if sw <= 0 || sh <= 0 || (sw <= w && sh <= h) {
		return im
	}

	scale := min(w/sw, h/sh)
	return transform.Resize(im,
		max(1, int(sw*scale)),
		max(1, int(sh*scale)),
		transform.Linear,
	)
}

// statLine builds the stat text of a card.
func statLine(card *cards.Card) string {
	parts := []string{}
	switch card.Kind {
	case cards.KindMonster:
		parts = append(parts, fmt.Sprintf("Niveau %d", card.Level))
		if card.Reward != "" {
			parts = append(parts, card.Reward)
		}
	case cards.KindItem:
		if card.Bonus != 0 {
			parts = append(parts, fmt.Sprintf("Bonus %+d", card.Bonus))
		}
		if card.Price > 0 {
			parts = append(parts, fmt.Sprintf("%d Pièces d'Or", card.Price))
		}
	default:
		if card.Bonus != 0 {
			parts = append(parts, fmt.Sprintf("Bonus %+d", card.Bonus))
		}
	}
	return strings.Join(parts, " · ")
}

// kindLabel returns the banner text of a card kind.
func kindLabel(k cards.Kind) string {
	switch k {
	case cards.KindMonster:
		return "Monstre"
	case cards.KindCurse:
		return "Malédiction"
	case cards.KindClass:
		return "Classe"
	case cards.KindRace:
		return "Race"
	case cards.KindFaithfulServant:
		return "Fidèle Serviteur"
	case cards.KindDungeonTrap:
		return "Piège de Donjon"
	case cards.KindDungeonBonus:
		return "Bonus de Donjon"
	case cards.KindItem:
		return "Objet"
	case cards.KindLevelUp:
		return "Niveau Supérieur"
	case cards.KindTreasureTrap:
		return "Piège de Trésor"
	}
	return "Autre"
}
