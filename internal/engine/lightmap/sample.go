package lightmap

import (
	"math"

	"github.com/Faultbox/srcview/pkg/formats"
)

// MaxStyles is the number of light styles a face can blend.
const MaxStyles = 4

// Face is the lighting of one surface: Width x Height luxels per style,
// each luxel a ColorRGBExp32 (r, g, b, signed exponent).
type Face struct {
	Width, Height int
	Styles        int
	Samples       []byte
}

// FaceFromBSP slices a face's samples out of the lighting lump.
// ok is false for faces without lighting or with samples outside the lump.
func FaceFromBSP(f *formats.Face, lighting []byte) (lf Face, ok bool) {
	if f.LightOfs < 0 {
		return lf, false
	}
	lf.Width = int(f.LightmapTextureSizeInLuxels[0]) + 1
	lf.Height = int(f.LightmapTextureSizeInLuxels[1]) + 1
	if lf.Width <= 0 || lf.Height <= 0 {
		return lf, false
	}
	for lf.Styles < MaxStyles && f.Styles[lf.Styles] != 255 {
		lf.Styles++
	}
	if lf.Styles == 0 {
		return lf, false
	}

	n := lf.Width * lf.Height * 4 * lf.Styles
	start := int(f.LightOfs)
	if start+n > len(lighting) {
		return lf, false
	}
	lf.Samples = lighting[start : start+n]
	return lf, true
}

// expScale[e+128] is 2^e for every signed exponent byte.
var expScale = func() (t [256]float32) {
	for i := range t {
		t[i] = float32(math.Ldexp(1, i-128))
	}
	return t
}()

// decodeRGBExp converts one ColorRGBExp32 channel to an 8-bit value.
func decodeRGBExp(c byte, exp int8) byte {
	v := float32(c) * expScale[int(exp)+128]
	if v > 255 {
		return 255
	}
	return byte(v)
}

// pixels sums every style into RGBA rows of Width x Height.
func (f Face) pixels() []byte {
	out := make([]byte, f.Width*f.Height*4)
	sum := make([]int, len(out))
	luxels := f.Width * f.Height
	for s := 0; s < f.Styles; s++ {
		style := f.Samples[s*luxels*4 : (s+1)*luxels*4]
		for i := 0; i < luxels; i++ {
			exp := int8(style[i*4+3])
			for c := 0; c < 3; c++ {
				sum[i*4+c] += int(decodeRGBExp(style[i*4+c], exp))
			}
		}
	}
	for i := 0; i < luxels; i++ {
		for c := 0; c < 3; c++ {
			out[i*4+c] = byte(min(sum[i*4+c], 255))
		}
		out[i*4+3] = 255
	}
	return out
}
