package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

// Symbol is drawn inside the shield.
type Symbol int

const (
	SymbolLock Symbol = iota
	SymbolCheckmark
	SymbolCross
	SymbolDots
)

// IconConfig defines the configuration for icon generation.
type IconConfig struct {
	Size        int
	FillColor   color.RGBA
	BorderColor color.RGBA
	AccentColor color.RGBA
	SymbolColor color.RGBA
	Symbol      Symbol
}

var white = color.RGBA{255, 255, 255, 255}

// ConnectedIconConfig is the icon of a running tunnel.
func ConnectedIconConfig() IconConfig {
	return IconConfig{
		Size:        common.TrayIconSize,
		FillColor:   color.RGBA{56, 142, 60, 255},   // Dark green
		BorderColor: color.RGBA{76, 175, 80, 255},   // Green
		AccentColor: color.RGBA{200, 230, 201, 255}, // Light green
		SymbolColor: white,
		Symbol:      SymbolCheckmark,
	}
}

// DisconnectedIconConfig is the icon of a stopped or unavailable tunnel.
func DisconnectedIconConfig() IconConfig {
	return IconConfig{
		Size:        common.TrayIconSize,
		FillColor:   color.RGBA{117, 117, 117, 255}, // Dark gray
		BorderColor: color.RGBA{158, 158, 158, 255}, // Gray
		AccentColor: color.RGBA{189, 189, 189, 255}, // Light gray
		SymbolColor: white,
		Symbol:      SymbolLock,
	}
}

// BusyIconConfig is shown while a start or stop is in flight.
func BusyIconConfig() IconConfig {
	return IconConfig{
		Size:        common.TrayIconSize,
		FillColor:   color.RGBA{229, 165, 10, 255},
		BorderColor: color.RGBA{245, 194, 17, 255},
		AccentColor: color.RGBA{249, 240, 107, 255},
		SymbolColor: white,
		Symbol:      SymbolDots,
	}
}

// ErrorIconConfig is shown when the VPN failed.
func ErrorIconConfig() IconConfig {
	return IconConfig{
		Size:        common.TrayIconSize,
		FillColor:   color.RGBA{192, 28, 40, 255},
		BorderColor: color.RGBA{224, 27, 36, 255},
		AccentColor: color.RGBA{246, 97, 81, 255},
		SymbolColor: white,
		Symbol:      SymbolCross,
	}
}

// IconGenerator generates PNG icons for the system tray.
type IconGenerator struct {
	config IconConfig
}

// NewIconGenerator creates a new icon generator with the given config.
func NewIconGenerator(config IconConfig) *IconGenerator {
	return &IconGenerator{config: config}
}

// Generate creates a PNG icon and returns the bytes.
func (g *IconGenerator) Generate() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, g.Image()); err != nil {
		common.LogError("Encoding tray icon: %v", err)
		return nil
	}
	return buf.Bytes()
}

// Image draws the icon.
func (g *IconGenerator) Image() *image.RGBA {
	size := g.config.Size
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	g.drawShield(img)
	switch g.config.Symbol {
	case SymbolCheckmark:
		g.drawCheckmark(img)
	case SymbolCross:
		g.drawCross(img)
	case SymbolDots:
		g.drawDots(img)
	default:
		g.drawLock(img)
	}
	return img
}

// drawShield draws the shield shape on the image.
func (g *IconGenerator) drawShield(img *image.RGBA) {
	size := g.config.Size
	centerX := float64(size) / 2
	topY := 1.0
	bottomY := float64(size) - 2
	shieldWidth := float64(size) - 4

	isInShield := func(x, y float64) bool {
		relY := (y - topY) / (bottomY - topY)
		if relY < 0 || relY > 1 {
			return false
		}

		var halfWidth float64
		if relY < 0.5 {
			halfWidth = shieldWidth/2 - relY*0.5
		} else {
			progress := (relY - 0.5) * 2
			halfWidth = (shieldWidth/2 - 0.25) * (1 - progress*progress)
		}

		return x >= centerX-halfWidth && x <= centerX+halfWidth
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if !isInShield(fx, fy) {
				continue
			}

			isBorder := !isInShield(fx-1, fy) || !isInShield(fx+1, fy) ||
				!isInShield(fx, fy-1) || !isInShield(fx, fy+1)
			switch {
			case isBorder:
				img.Set(x, y, g.config.BorderColor)
			case float64(y)/float64(size) < 0.3:
				img.Set(x, y, g.config.AccentColor)
			default:
				img.Set(x, y, g.config.FillColor)
			}
		}
	}
}

func (g *IconGenerator) set(img *image.RGBA, x, y int) {
	if x >= 0 && x < g.config.Size && y >= 0 && y < g.config.Size {
		img.Set(x, y, g.config.SymbolColor)
	}
}

// drawCheckmark draws a checkmark symbol on the image.
func (g *IconGenerator) drawCheckmark(img *image.RGBA) {
	points := []struct{ x, y int }{
		{6, 11}, {7, 11}, {7, 12}, {8, 12}, {8, 13}, {9, 13},
		{9, 12}, {10, 12}, {10, 11}, {11, 11}, {11, 10}, {12, 10},
		{12, 9}, {13, 9}, {13, 8}, {14, 8},
	}
	for _, p := range points {
		g.set(img, p.x, p.y)
	}
}

// drawCross draws an X on the image.
func (g *IconGenerator) drawCross(img *image.RGBA) {
	for i := 0; i <= 6; i++ {
		g.set(img, 8+i, 7+i)
		g.set(img, 14-i, 7+i)
	}
}

// drawDots draws three dots on the image.
func (g *IconGenerator) drawDots(img *image.RGBA) {
	for _, x := range []int{7, 11, 15} {
		g.set(img, x-1, 10)
		g.set(img, x, 10)
		g.set(img, x-1, 11)
		g.set(img, x, 11)
	}
}

// drawLock draws a lock symbol on the image.
func (g *IconGenerator) drawLock(img *image.RGBA) {
	// Lock body
	for y := 10; y <= 15; y++ {
		for x := 8; x <= 14; x++ {
			if y == 10 || y == 15 || x == 8 || x == 14 {
				g.set(img, x, y)
			}
		}
	}

	// Lock shackle
	for y := 6; y <= 8; y++ {
		g.set(img, 9, y)
		g.set(img, 13, y)
	}
	for x := 9; x <= 13; x++ {
		g.set(img, x, 6)
	}
}

// Pre-generated icons for performance.
var (
	iconConnected    = NewIconGenerator(ConnectedIconConfig()).Generate()
	iconDisconnected = NewIconGenerator(DisconnectedIconConfig()).Generate()
	iconBusy         = NewIconGenerator(BusyIconConfig()).Generate()
	iconError        = NewIconGenerator(ErrorIconConfig()).Generate()
)

// iconFor returns the tray icon of state s.
func iconFor(s vpn.State) []byte {
	switch s {
	case vpn.StateUp:
		return iconConnected
	case vpn.StateConnecting, vpn.StateDisconnecting:
		return iconBusy
	case vpn.StateFailed, vpn.StateNoPolicyAgent:
		return iconError
	default:
		return iconDisconnected
	}
}
