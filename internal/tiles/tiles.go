// Package tiles rescales 256x256 character sheets (a 4x4 grid of 64x64
// frames) to the 128x192 layout RPG Maker XP uses (4x4 frames of 32x48).
package tiles

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	"github.com/hpungsan/rxscripts/internal/errors"
)

const (
	SourceSize   = 256
	OutputSuffix = "_gen3"

	grid         = 4
	scaledSize   = 192 // 75% of SourceSize
	scaledTile   = scaledSize / grid
	trim         = 8 // removed from each side of a scaled frame
	trimmedWidth = scaledTile - 2*trim
	jpegQuality  = 95
)

// Convert scales a 256x256 sheet to 192x192, then trims every 48x48 frame to
// its middle 32 columns and packs the frames into a 128x192 RGBA image.
func Convert(img image.Image) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() != SourceSize || b.Dy() != SourceSize {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("expected a %dx%d image, got %dx%d", SourceSize, SourceSize, b.Dx(), b.Dy()))
	}

	scaled := transform.Resize(img, scaledSize, scaledSize, transform.Lanczos)
	out := image.NewRGBA(image.Rect(0, 0, grid*trimmedWidth, grid*scaledTile))

	for y := 0; y < grid; y++ {
		for x := 0; x < grid; x++ {
			left, top := x*scaledTile, y*scaledTile
			frame := transform.Crop(scaled, image.Rect(left+trim, top, left+scaledTile-trim, top+scaledTile))
			dst := image.Rect(x*trimmedWidth, y*scaledTile, (x+1)*trimmedWidth, (y+1)*scaledTile)
			draw.Draw(out, dst, frame, frame.Bounds().Min, draw.Src)
		}
	}
	return out, nil
}

// OutputPath returns <dir>/<base>_gen3<ext> for an input path.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + OutputSuffix + ext
}

func encoderFor(path string) (imgio.Encoder, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return imgio.PNGEncoder(), true
	case ".jpg":
		return imgio.JPEGEncoder(jpegQuality), true
	}
	return nil, false
}

// ConvertFile converts one sheet and writes it beside the input. It returns
// the output path.
func ConvertFile(input string) (string, error) {
	enc, ok := encoderFor(input)
	if !ok {
		return "", errors.NewInvalidRequest("input file must be a .png or .jpg: " + input)
	}

	img, err := imgio.Open(input)
	if err != nil {
		return "", errors.NewIOFailed(input, err)
	}
	out, err := Convert(img)
	if err != nil {
		return "", err
	}

	output := OutputPath(input)
	if err := imgio.Save(output, out, enc); err != nil {
		return "", errors.NewIOFailed(output, err)
	}
	return output, nil
}

// Result is the outcome for one input of ConvertFiles.
type Result struct {
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ConvertFiles converts each input independently. A failure is logged and
// recorded in its Result; the batch continues.
func ConvertFiles(ctx context.Context, inputs []string, logger *log.Logger) ([]Result, error) {
	if logger == nil {
		logger = log.Default()
	}

	results := make([]Result, 0, len(inputs))
	for _, input := range inputs {
		if ctx.Err() != nil {
			return results, errors.NewCancelled("tiles")
		}

		abs, err := filepath.Abs(input)
		if err != nil {
			abs = input
		}
		res := Result{Input: abs}
		output, err := ConvertFile(abs)
		if err != nil {
			logger.Printf("tiles: %s: %v", abs, err)
			res.Error = err.Error()
		} else {
			res.Output = output
		}
		results = append(results, res)
	}
	return results, nil
}
