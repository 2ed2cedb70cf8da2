package imagetruth

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"strconv"
	"strings"
)

// Classifier is the injected inference capability: given a preprocessed
// pixel buffer it returns the model's verdict. A nil result with a nil error
// means the classifier had no opinion; fusion then treats the model side as
// maximally uncertain.
type Classifier interface {
	Classify(ctx context.Context, buf *PixelBuffer) (*ClassifierResult, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, buf *PixelBuffer) (*ClassifierResult, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, buf *PixelBuffer) (*ClassifierResult, error) {
	return f(ctx, buf)
}

// aiThreshold splits a sigmoid output into the AI and real labels.
const aiThreshold = 0.5

// ResultFromRawScore converts a model's sigmoid output (probability of "AI",
// 0-1) into a label-conditioned result in percent.
func ResultFromRawScore(raw float64) ClassifierResult {
	raw = clampFloat(raw, 0, 1)
	isAI := raw > aiThreshold
	conf := raw
	if !isAI {
		conf = 1 - raw
	}
	return ClassifierResult{IsAI: isAI, Confidence: conf * 100}
}

// ImageInput represents an image for multimodal LLM classification.
type ImageInput struct {
	URL      string // data: URI or HTTP URL
	MIMEType string // e.g. "image/png"
}

// LLM abstracts multimodal LLM calls.
type LLM interface {
	Complete(ctx context.Context, prompt string, images []ImageInput) (string, error)
}

// VisionPrompt is the default instruction for LLM-based AI-image detection.
const VisionPrompt = `You are a forensic image analyst.
Decide whether this image is a real camera photograph or was synthetically
generated (diffusion model, GAN, or similar).

Answer with exactly one word followed by your confidence in percent:
- REAL <confidence>: captured by a camera.
- AI <confidence>: generated or substantially synthesized.

Examples: "REAL 82", "AI 95".

Answer:`

// VisionClassifier classifies pixel buffers with a multimodal LLM.
type VisionClassifier struct {
	LLM    LLM
	Prompt string // default: VisionPrompt
}

// Classify sends the buffer as a PNG data URI and parses the reply.
// Unparseable replies yield a nil result (graceful degradation); LLM
// transport errors are returned.
func (v *VisionClassifier) Classify(ctx context.Context, buf *PixelBuffer) (*ClassifierResult, error) {
	if v.LLM == nil || buf == nil {
		return nil, nil
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, buf.Image()); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	prompt := v.Prompt
	if prompt == "" {
		prompt = VisionPrompt
	}

	resp, err := v.LLM.Complete(ctx, prompt, []ImageInput{{
		URL:      EncodeDataURL(encoded.Bytes(), "image/png"),
		MIMEType: "image/png",
	}})
	if err != nil {
		return nil, fmt.Errorf("vision llm: %w", err)
	}

	slog.Debug("imagetruth: vision result", "response", resp)
	return ParseVisionResponse(resp), nil
}

// ParseVisionResponse parses "AI 87" / "REAL 92%" style replies.
// Returns nil if the label or the confidence is missing.
func ParseVisionResponse(resp string) *ClassifierResult {
	fields := strings.Fields(strings.ToUpper(resp))
	if len(fields) < 2 { //nolint:mnd // label + confidence
		return nil
	}

	var isAI bool
	switch strings.Trim(fields[0], ".,:;-\"'") {
	case "AI":
		isAI = true
	case "REAL":
		isAI = false
	default:
		return nil
	}

	conf, err := strconv.ParseFloat(strings.Trim(fields[1], ".,:;%\"'()"), 64)
	if err != nil {
		return nil
	}

	return &ClassifierResult{IsAI: isAI, Confidence: clampFloat(conf, 0, 100)}
}
