/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// layout.go: frame geometry
package frame

import (
	"errors"
	"fmt"

	"github.com/gitrgoliveira/go-framestash/internal/packet"
)

const (
	DefaultWidth           = 1920
	DefaultHeight          = 1080
	DefaultPacketsPerFrame = 64

	// MaxFramePixels bounds W*H so a single frame buffer stays reasonable
	// (8K UHD is about 33M pixels).
	MaxFramePixels = 1 << 26
)

// ErrInvalidLayout is returned for a geometry that cannot carry packets.
var ErrInvalidLayout = errors.New("invalid frame layout")

// LayoutConfig is the user-facing geometry. The zero value of any field
// means its default.
type LayoutConfig struct {
	Width           int `yaml:"width"`
	Height          int `yaml:"height"`
	PacketsPerFrame int `yaml:"packets_per_frame"`
}

// DefaultLayoutConfig returns 1080p with 64 packets per frame.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		PacketsPerFrame: DefaultPacketsPerFrame,
	}
}

func (c LayoutConfig) withDefaults() LayoutConfig {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.PacketsPerFrame == 0 {
		c.PacketsPerFrame = DefaultPacketsPerFrame
	}
	return c
}

// Layout is the derived geometry of every data frame. A frame is
// Width*Height bytes, one byte per grey pixel in row-major order:
//
//	[8 frame header][slot 0]...[slot PacketsPerFrame-1][Padding zero bytes]
//
// Each slot holds one packet of at most SlotSize bytes.
type Layout struct {
	Width           int
	Height          int
	FrameOverhead   int
	Capacity        int
	PacketsPerFrame int
	SlotSize        int
	SymbolSize      int
	Padding         int
}

// ComputeLayout derives the Layout for cfg. It is pure: equal inputs
// always give equal layouts, which is what lets a header-less stream be
// decoded from configuration alone.
func ComputeLayout(cfg LayoutConfig) (Layout, error) {
	cfg = cfg.withDefaults()
	if cfg.Width < 0 || cfg.Height < 0 || cfg.PacketsPerFrame < 0 {
		return Layout{}, fmt.Errorf("%w: negative dimension %dx%d/%d", ErrInvalidLayout, cfg.Width, cfg.Height, cfg.PacketsPerFrame)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxFramePixels {
		return Layout{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidLayout, cfg.Width, cfg.Height, MaxFramePixels)
	}

	capacity := cfg.Width*cfg.Height - HeaderSize
	slot := 0
	if capacity > 0 {
		slot = capacity / cfg.PacketsPerFrame
	}
	symbol := slot - packet.HeaderSize
	if symbol < 1 {
		return Layout{}, fmt.Errorf("%w: %dx%d frame too small for %d packets", ErrInvalidLayout, cfg.Width, cfg.Height, cfg.PacketsPerFrame)
	}
	if symbol > packet.MaxSymbolSize {
		return Layout{}, fmt.Errorf("%w: symbol size %d exceeds %d, raise packets_per_frame", ErrInvalidLayout, symbol, packet.MaxSymbolSize)
	}

	return Layout{
		Width:           cfg.Width,
		Height:          cfg.Height,
		FrameOverhead:   HeaderSize,
		Capacity:        capacity,
		PacketsPerFrame: cfg.PacketsPerFrame,
		SlotSize:        slot,
		SymbolSize:      symbol,
		Padding:         capacity - cfg.PacketsPerFrame*slot,
	}, nil
}

// FrameSize is the number of bytes (pixels) in one frame.
func (l Layout) FrameSize() int { return l.Width * l.Height }

// Config returns the configuration l was computed from.
func (l Layout) Config() LayoutConfig {
	return LayoutConfig{Width: l.Width, Height: l.Height, PacketsPerFrame: l.PacketsPerFrame}
}

// slotOffset is the byte offset of slot i inside a frame.
func (l Layout) slotOffset(i int) int { return HeaderSize + i*l.SlotSize }

// controlCapacity is how many control payload bytes fit in one frame.
func (l Layout) controlCapacity() int { return l.Capacity - segmentHeaderSize }

func (l Layout) String() string {
	return fmt.Sprintf("%dx%d, %d packets of %d bytes (T=%d)", l.Width, l.Height, l.PacketsPerFrame, l.SlotSize, l.SymbolSize)
}
