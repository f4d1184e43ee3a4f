package icon

import "image"

// Bleed recolors fully transparent pixels to the color of their nearest
// non-transparent neighbors. Some resize pipelines sample the RGB of
// transparent pixels, which shows up as dark halos around the visible shape;
// bleeding the edge colors outward removes them. Alpha values are untouched.
//
// The bleed propagates as a breadth-first wave from the opaque edge: each
// round recolors the transparent pixels bordering already-colored ones,
// averaging the contributing neighbors, then lets the next round sample them.
func Bleed(img *image.NRGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}

	canSample := newMask(w, h)
	visited := newMask(w, h)
	var queue []point

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if img.Pix[img.PixOffset(x, y)+3] != 0 {
				canSample.set(x, y)
				visited.set(x, y)
				continue
			}
			if bordersOpaque(img, x, y, w, h) {
				visited.set(x, y)
				queue = append(queue, point{x, y})
			}
		}
	}

	for len(queue) > 0 {
		round := queue
		queue = nil

		for _, p := range round {
			var r, g, b, contributing uint32
			for _, d := range directions {
				nx, ny := p.x+d.x, p.y+d.y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if canSample.get(nx, ny) {
					off := img.PixOffset(nx, ny)
					r += uint32(img.Pix[off])
					g += uint32(img.Pix[off+1])
					b += uint32(img.Pix[off+2])
					contributing++
				} else if !visited.get(nx, ny) {
					visited.set(nx, ny)
					queue = append(queue, point{nx, ny})
				}
			}

			if contributing == 0 {
				contributing = 1
			}
			off := img.PixOffset(p.x, p.y)
			img.Pix[off] = uint8(r / contributing)
			img.Pix[off+1] = uint8(g / contributing)
			img.Pix[off+2] = uint8(b / contributing)
			img.Pix[off+3] = 0
		}

		// Recolored pixels become sample sources only for the next round,
		// keeping each round's averages independent of iteration order.
		for _, p := range round {
			canSample.set(p.x, p.y)
		}
	}
}

type point struct{ x, y int }

var directions = [8]point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func bordersOpaque(img *image.NRGBA, x, y, w, h int) bool {
	for _, d := range directions {
		nx, ny := x+d.x, y+d.y
		if nx < 0 || ny < 0 || nx >= w || ny >= h {
			continue
		}
		if img.Pix[img.PixOffset(nx, ny)+3] != 0 {
			return true
		}
	}
	return false
}

type mask struct {
	w    int
	bits []uint64
}

func newMask(w, h int) *mask {
	return &mask{w: w, bits: make([]uint64, (w*h+63)/64)}
}

func (m *mask) get(x, y int) bool {
	i := x + y*m.w
	return m.bits[i/64]&(1<<(i%64)) != 0
}

func (m *mask) set(x, y int) {
	i := x + y*m.w
	m.bits[i/64] |= 1 << (i % 64)
}
