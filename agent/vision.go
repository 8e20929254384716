package agent

import (
	"bytes"
	"encoding/base64"
	"hash/fnv"
	"image"
	"image/jpeg"
	"math"
)

// pixelStride controls how sparsely frames are sampled for the cheap
// per-cycle checks. Every Nth pixel is enough for luminance, hashing,
// and the skin ratio.
const pixelStride = 4

// averageLuminance returns the mean Rec. 601 luma of the sampled
// pixels, in [0, 255].
func averageLuminance(f *Frame) float64 {
	if len(f.Pix) < 4 {
		return 0
	}
	var sum float64
	var count int
	for i := 0; i+3 < len(f.Pix); i += 4 * pixelStride {
		r := float64(f.Pix[i])
		g := float64(f.Pix[i+1])
		b := float64(f.Pix[i+2])
		sum += 0.299*r + 0.587*g + 0.114*b
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// frameHash is a cheap rolling fingerprint over sampled pixels, used to
// spot a frozen feed when it repeats across consecutive samples.
func frameHash(f *Frame) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for i := 0; i+3 < len(f.Pix); i += 4 * pixelStride {
		buf[0] = f.Pix[i]
		buf[1] = f.Pix[i+1]
		buf[2] = f.Pix[i+2]
		buf[3] = f.Pix[i+3]
		h.Write(buf[:])
	}
	return h.Sum64()
}

// skinRatio returns the fraction of sampled pixels that match a simple
// RGB skin-tone heuristic.
func skinRatio(f *Frame) float64 {
	var skin, total int
	for i := 0; i+3 < len(f.Pix); i += 4 * pixelStride {
		r := int(f.Pix[i])
		g := int(f.Pix[i+1])
		b := int(f.Pix[i+2])
		total++
		if isSkinTone(r, g, b) {
			skin++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(skin) / float64(total)
}

func isSkinTone(r, g, b int) bool {
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}
	min := r
	if g < min {
		min = g
	}
	if b < min {
		min = b
	}
	return r > 95 && g > 40 && b > 20 &&
		max-min > 15 &&
		abs(r-g) > 15 && r > g && r > b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// rms returns the root mean square of an audio sample window.
func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// encodeSnapshot renders a frame as a base64 JPEG for the violation
// report.
func encodeSnapshot(f *Frame) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.Pix)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
