package main

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"parkarena/broker/internal/arena"
	"parkarena/broker/internal/collision"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
)

var (
	styleDefault  = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleHUD      = styleDefault.Foreground(tcell.ColorOrange)
	styleMessage  = styleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleHelp     = styleDefault.Foreground(tcell.ColorGray)
	styleWall     = styleDefault.Foreground(tcell.ColorDarkGray)
	styleBlock    = styleDefault.Foreground(tcell.ColorRed)
	styleTree     = styleDefault.Foreground(tcell.ColorGreen)
	styleAICar    = styleDefault.Foreground(tcell.ColorAqua)
	styleSphere   = styleDefault.Foreground(tcell.ColorYellow)
	styleTarget   = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
	styleVehicle  = styleDefault.Foreground(tcell.ColorWhite).Bold(true)
	categoryGlyph = map[collision.Category]struct {
		r     rune
		style tcell.Style
	}{
		collision.CategoryWall:        {'#', styleWall},
		collision.CategoryCarObstacle: {'B', styleBlock},
		collision.CategoryTree:        {'T', styleTree},
		collision.CategoryAICar:       {'a', styleAICar},
		collision.CategorySphere:      {'o', styleSphere},
	}
)

// viewport maps arena floor coordinates onto a screen rectangle, with +Z up.
type viewport struct {
	left, top     int
	width, height int
	halfX, halfZ  float64
}

func newViewport(layout arena.Layout, left, top, width, height int) viewport {
	return viewport{
		left: left, top: top, width: width, height: height,
		halfX: layout.Width/2 + layout.WallThickness,
		halfZ: layout.Length/2 + layout.WallThickness,
	}
}

// project returns the cell under a floor point and whether it is on screen.
func (v viewport) project(x, z float64) (int, int, bool) {
	if v.width <= 0 || v.height <= 0 {
		return 0, 0, false
	}
	u := (x + v.halfX) / (2 * v.halfX)
	w := (v.halfZ - z) / (2 * v.halfZ)
	if u < 0 || u > 1 || w < 0 || w > 1 {
		return 0, 0, false
	}
	col := v.left + int(math.Min(u*float64(v.width), float64(v.width-1)))
	row := v.top + int(math.Min(w*float64(v.height), float64(v.height-1)))
	return col, row, true
}

// fillBox paints every cell whose footprint overlaps the box.
func (v viewport) fillBox(screen tcell.Screen, box collision.Box, r rune, style tcell.Style) {
	minCol, minRow, okMin := v.project(box.Center.X()-box.HalfExtents.X(), box.Center.Z()+box.HalfExtents.Z())
	maxCol, maxRow, okMax := v.project(box.Center.X()+box.HalfExtents.X(), box.Center.Z()-box.HalfExtents.Z())
	if !okMin && !okMax {
		if col, row, ok := v.project(box.Center.X(), box.Center.Z()); ok {
			screen.SetContent(col, row, r, nil, style)
		}
		return
	}
	if !okMin {
		minCol, minRow = v.left, v.top
	}
	if !okMax {
		maxCol, maxRow = v.left+v.width-1, v.top+v.height-1
	}
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			screen.SetContent(col, row, r, nil, style)
		}
	}
}

// heading arrows, clockwise from +Z.
var arrows = []rune{'^', '/', '>', '\\', 'v', '/', '<', '\\'}

func arrowFor(heading float64) rune {
	normalised := math.Mod(physics.WrapHeading(heading)+360, 360)
	index := int(math.Floor((normalised+22.5)/45)) % len(arrows)
	return arrows[index]
}

// draw paints the HUD, the course and the vehicle.
func draw(screen tcell.Screen, layout arena.Layout, snapshot match.Snapshot) {
	screen.Clear()
	width, height := screen.Size()

	//1.- HUD read-outs on the first rows, message and help beneath.
	lines := hudLines(snapshot)
	for i, line := range lines {
		drawText(screen, 1, i, line, styleHUD)
	}
	drawText(screen, 1, len(lines), banner(snapshot), styleMessage)
	drawText(screen, 0, height-1, helpLine, styleHelp)

	//2.- The map takes what is left, keeping the floor's aspect roughly intact.
	top := len(lines) + 2
	mapHeight := height - top - 1
	mapWidth := int(float64(mapHeight) * 2 * layout.Width / layout.Length)
	if mapWidth < 10 {
		mapWidth = 10
	}
	if mapWidth > width {
		mapWidth = width
	}
	view := newViewport(layout, (width-mapWidth)/2, top, mapWidth, mapHeight)

	if snapshot.Vehicle == physics.KindAir {
		view.fillBox(screen, layout.Landing.Box, '=', styleTarget)
	} else {
		view.fillBox(screen, layout.Parking.Box, 'P', styleTarget)
	}
	for _, volumes := range [][]collision.Volume{snapshot.Boundaries, snapshot.Obstacles} {
		for _, volume := range volumes {
			glyph, ok := categoryGlyph[volume.Category]
			if !ok {
				glyph.r, glyph.style = '?', styleDefault
			}
			if volume.Shape == collision.ShapeSphere {
				if col, row, on := view.project(volume.Center.X(), volume.Center.Z()); on {
					screen.SetContent(col, row, glyph.r, nil, glyph.style)
				}
				continue
			}
			view.fillBox(screen, collision.Box{Center: volume.Center, HalfExtents: volume.HalfExtents}, glyph.r, glyph.style)
		}
	}
	position := snapshot.Pose.Position
	if col, row, ok := view.project(position.X(), position.Z()); ok {
		screen.SetContent(col, row, arrowFor(snapshot.Pose.Heading), nil, styleVehicle)
	}
	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
