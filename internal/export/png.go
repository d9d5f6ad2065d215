package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	imageWidth = 960
	margin     = 24
	lineHeight = 18
	charWidth  = 7
)

var (
	inkColor    = color.RGBA{0x22, 0x22, 0x22, 0xff}
	accentColor = color.RGBA{0x00, 0x7b, 0xff, 0xff}
)

type textLine struct {
	text  string
	color color.Color
}

// WritePNG renders h as a single tall image in a fixed-width font.
func WritePNG(w io.Writer, h History) error {
	lines := h.textLines()

	height := 2*margin + len(lines)*lineHeight
	img := image.NewRGBA(image.Rect(0, 0, imageWidth, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	for i, l := range lines {
		d.Src = image.NewUniform(l.color)
		d.Dot = fixed.P(margin, margin+(i+1)*lineHeight-4)
		d.DrawString(l.text)
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (h History) textLines() []textLine {
	maxChars := (imageWidth - 2*margin) / charWidth
	var out []textLine
	add := func(c color.Color, s string) {
		for _, part := range wrap(s, maxChars) {
			out = append(out, textLine{text: part, color: c})
		}
	}

	add(accentColor, "MEDICAL HISTORY - "+strings.ToUpper(h.Patient.Name))
	add(inkColor, "Generated "+h.dateTime(h.GeneratedAt))
	add(inkColor, "")
	for _, kv := range h.profile() {
		add(inkColor, fmt.Sprintf("%-18s %s", kv[0]+":", kv[1]))
	}

	for _, s := range h.sections() {
		add(inkColor, "")
		add(accentColor, strings.ToUpper(s.title))
		if len(s.rows) == 0 {
			add(inkColor, "  No entries")
			continue
		}
		for _, row := range s.rows {
			add(inkColor, "  "+strings.Join(row, " | "))
		}
	}
	return out
}

// wrap splits s into chunks of at most width runes, breaking on spaces
// where possible.
func wrap(s string, width int) []string {
	r := []rune(s)
	if len(r) <= width {
		return []string{s}
	}
	var out []string
	for len(r) > width {
		cut := width
		for i := width; i > width/2; i-- {
			if r[i] == ' ' {
				cut = i
				break
			}
		}
		out = append(out, string(r[:cut]))
		r = []rune(strings.TrimLeft(string(r[cut:]), " "))
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}
