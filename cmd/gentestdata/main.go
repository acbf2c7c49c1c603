// Command gentestdata writes synthetic microscopy images and a matching
// annotation file, for exercising the review UI without real data.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
)

type imageEntry struct {
	ImagePath  string       `json:"image_path"`
	PredBoxes  [][4]float64 `json:"pred_boxes"`
	PredScores []float64    `json:"pred_scores"`
	NumCells   int          `json:"num_detected_sperm"`
}

func main() {
	outDir := flag.String("out", "testdata", "Output directory")
	numImages := flag.Int("images", 4, "Number of images to generate")
	cellsPer := flag.Int("cells", 12, "Detections per image")
	width := flag.Int("width", 1024, "Image width in pixels")
	height := flag.Int("height", 768, "Image height in pixels")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	imagesDir := filepath.Join(*outDir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", imagesDir, err)
		os.Exit(1)
	}

	entries := make([]imageEntry, 0, *numImages)
	for i := 0; i < *numImages; i++ {
		name := fmt.Sprintf("synthetic_%03d.tif", i)
		path := filepath.Join(imagesDir, name)

		entry, err := writeImage(path, *width, *height, *cellsPer, rng)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		entry.ImagePath = "./images/" + name
		entries = append(entries, entry)
		fmt.Printf("Wrote %s with %d cells\n", path, entry.NumCells)
	}

	annPath := filepath.Join(*outDir, "annotations.json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode annotations: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(annPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", annPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", annPath)
}

// writeImage renders noisy 16-bit grayscale tissue with bright elliptical
// cells and returns the matching detection entry.
func writeImage(path string, w, h, cells int, rng *rand.Rand) (imageEntry, error) {
	img := image.NewGray16(image.Rect(0, 0, w, h))

	// Background noise around a mid-gray level.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 12000 + rng.Intn(4000)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}

	entry := imageEntry{}
	for i := 0; i < cells; i++ {
		cw := 20 + rng.Intn(30)
		ch := 14 + rng.Intn(20)
		cx := cw + rng.Intn(w-2*cw)
		cy := ch + rng.Intn(h-2*ch)

		drawEllipse(img, cx, cy, cw/2, ch/2, uint16(38000+rng.Intn(20000)))

		entry.PredBoxes = append(entry.PredBoxes, [4]float64{
			float64(cx - cw/2), float64(cy - ch/2),
			float64(cx + cw/2), float64(cy + ch/2),
		})
		// Skew scores high so default thresholds keep most cells.
		entry.PredScores = append(entry.PredScores, 0.3+0.7*rng.Float64())
	}
	entry.NumCells = cells

	f, err := os.Create(path)
	if err != nil {
		return entry, err
	}
	defer f.Close()
	return entry, tiff.Encode(f, img, nil)
}

func drawEllipse(img *image.Gray16, cx, cy, rx, ry int, value uint16) {
	for dy := -ry; dy <= ry; dy++ {
		for dx := -rx; dx <= rx; dx++ {
			fx := float64(dx) / float64(rx)
			fy := float64(dy) / float64(ry)
			if math.Sqrt(fx*fx+fy*fy) <= 1.0 {
				x, y := cx+dx, cy+dy
				if x >= 0 && y >= 0 && x < img.Bounds().Dx() && y < img.Bounds().Dy() {
					img.SetGray16(x, y, color.Gray16{Y: value})
				}
			}
		}
	}
}
