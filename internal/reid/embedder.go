// Package reid implements the Re-Identification Manager (spec.md §4.7):
// an appearance embedder (dedicated model, falling back to an HSV
// histogram) and a TTL gallery performing cosine-similarity
// match-or-register with cross-camera severity boosting.
package reid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"golang.org/x/image/draw"

	"sentinel/internal/pipeline"
)

const (
	embedderTimeout = 5 * time.Second
	cropWidth       = 64
	cropHeight      = 128
	hueBins         = 16
	satBins         = 8
	valBins         = 8
	histogramDims   = hueBins * satBins * valBins
)

// Embedder extracts a unit-norm appearance embedding for a person crop,
// preferring a dedicated re-id model endpoint and falling back to an HSV
// color histogram when no endpoint is configured or it fails (spec.md
// §4.7). Implements pipeline.Embedder.
type Embedder struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

// NewEmbedder constructs a re-id embedder. endpoint may be empty, in
// which case Embed always uses the HSV histogram fallback.
func NewEmbedder(endpoint string, logger *log.Logger) *Embedder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Embedder{endpoint: endpoint, client: &http.Client{Timeout: embedderTimeout}, logger: logger}
}

// Embed returns a unit-norm embedding for the person crop described by
// box within frameJPEG. preferred is true iff the dedicated re-id model
// produced the embedding.
func (e *Embedder) Embed(frameJPEG []byte, box pipeline.BBox) ([]float64, bool, error) {
	crop, err := cropAndResize(frameJPEG, box)
	if err != nil {
		return nil, false, err
	}

	if e.endpoint != "" {
		if emb, err := e.embedRemote(crop); err == nil {
			return normalize(emb), true, nil
		} else {
			e.logger.Printf("re-id model unavailable, falling back to HSV histogram: %v", err)
		}
	}

	return hsvHistogram(crop), false, nil
}

func (e *Embedder) embedRemote(crop image.Image) ([]float64, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, nil); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="crop.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(buf.Bytes()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, e.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("re-id endpoint returned status %d", resp.StatusCode)
	}

	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

// cropAndResize decodes frameJPEG, crops to box, and resizes to the fixed
// 64x128 embedder input size using bilinear scaling.
func cropAndResize(frameJPEG []byte, box pipeline.BBox) (image.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(frameJPEG))
	if err != nil {
		return nil, err
	}

	rect := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
	rect = rect.Intersect(src.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("bbox does not intersect frame bounds")
	}

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), src, rect.Min, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)
	return dst, nil
}

// hsvHistogram computes a 16x8x8-bin HSV color histogram (1024-dim),
// unit-normalized (spec.md §4.7 fallback embedder).
func hsvHistogram(img image.Image) []float64 {
	hist := make([]float64, histogramDims)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			h, s, v := rgbToHSV(float64(r)/65535, float64(g)/65535, float64(b)/65535)
			hi := binIndex(h, hueBins)
			si := binIndex(s, satBins)
			vi := binIndex(v, valBins)
			hist[hi*satBins*valBins+si*valBins+vi]++
		}
	}
	return normalize(hist)
}

func binIndex(frac float64, bins int) int {
	idx := int(frac * float64(bins))
	if idx >= bins {
		idx = bins - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func rgbToHSV(r, g, b float64) (h, s, v float64) {
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	v = maxC
	delta := maxC - minC
	if maxC == 0 {
		s = 0
	} else {
		s = delta / maxC
	}
	if delta == 0 {
		h = 0
	} else {
		switch maxC {
		case r:
			h = math.Mod((g-b)/delta, 6)
		case g:
			h = (b-r)/delta + 2
		default:
			h = (r-g)/delta + 4
		}
		h /= 6
		if h < 0 {
			h += 1
		}
	}
	return h, s, v
}

func normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

var _ pipeline.Embedder = (*Embedder)(nil)
