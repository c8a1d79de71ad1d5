package fingerprint

import (
	"image"
	"image/color"
	"testing"
)

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func checkerImage(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if ((x/cell)+(y/cell))%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestComputeProducesAllAlgorithms(t *testing.T) {
	hashes, err := Compute(gradientImage(64, 64))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	widths := map[string]int{
		AlgoAverage:       16,
		AlgoDifference:    16,
		AlgoPerception:    16,
		AlgoPerceptionExt: 64,
	}
	for algo, width := range widths {
		digest, ok := hashes[algo]
		if !ok {
			t.Fatalf("missing %s digest", algo)
		}
		if len(digest) != width {
			t.Errorf("%s digest width = %d, want %d", algo, len(digest), width)
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	first, err := Compute(gradientImage(64, 64))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	second, err := Compute(gradientImage(64, 64))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for algo, digest := range first {
		if second[algo] != digest {
			t.Errorf("%s digest differs between runs: %s vs %s", algo, digest, second[algo])
		}
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "00ff00ff00ff00ff", "00ff00ff00ff00ff", 0},
		{"one bit", "0000000000000000", "0000000000000001", 1},
		{"full byte", "0000000000000000", "00000000000000ff", 8},
		{"all bits", "0000000000000000", "ffffffffffffffff", 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Distance: %v", err)
			}
			if got != tt.want {
				t.Errorf("Distance = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDistanceRejectsWidthMismatch(t *testing.T) {
	if _, err := Distance("00ff", "00ff00ff"); err == nil {
		t.Fatal("expected error for digests of different widths")
	}
}

func TestDistanceRejectsMalformedDigest(t *testing.T) {
	if _, err := Distance("zzzz", "00ff"); err == nil {
		t.Fatal("expected error for non-hex digest")
	}
}

func TestAnyDistanceWithin(t *testing.T) {
	reference := Hashes{
		AlgoAverage:    "0000000000000000",
		AlgoDifference: "ffffffffffffffff",
	}

	tests := []struct {
		name      string
		candidate Hashes
		threshold int
		want      bool
	}{
		{
			name:      "one algorithm within threshold",
			candidate: Hashes{AlgoAverage: "0000000000000003", AlgoDifference: "0000000000000000"},
			threshold: 2,
			want:      true,
		},
		{
			name:      "all algorithms beyond threshold",
			candidate: Hashes{AlgoAverage: "00000000000000ff", AlgoDifference: "00000000000000ff"},
			threshold: 2,
			want:      false,
		},
		{
			name:      "no shared algorithms",
			candidate: Hashes{AlgoPerception: "0000000000000000"},
			threshold: 64,
			want:      false,
		},
		{
			name:      "malformed digest skipped",
			candidate: Hashes{AlgoAverage: "not-hex-not-even", AlgoDifference: "ffffffffffffffff"},
			threshold: 0,
			want:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnyDistanceWithin(tt.candidate, reference, tt.threshold)
			if got != tt.want {
				t.Errorf("AnyDistanceWithin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilarImagesMatchWithinThreshold(t *testing.T) {
	original, err := Compute(checkerImage(256, 256, 32))
	if err != nil {
		t.Fatalf("Compute original: %v", err)
	}
	rescaled, err := Compute(checkerImage(128, 128, 16))
	if err != nil {
		t.Fatalf("Compute rescaled: %v", err)
	}
	if !AnyDistanceWithin(rescaled, original, 7) {
		t.Error("rescaled copy of the same pattern should match within default threshold")
	}
}

func TestDissimilarImagesDoNotMatch(t *testing.T) {
	gradient, err := Compute(gradientImage(256, 256))
	if err != nil {
		t.Fatalf("Compute gradient: %v", err)
	}
	checker, err := Compute(checkerImage(256, 256, 16))
	if err != nil {
		t.Fatalf("Compute checker: %v", err)
	}
	if AnyDistanceWithin(checker, gradient, 3) {
		t.Error("unrelated images should not match at a tight threshold")
	}
}
