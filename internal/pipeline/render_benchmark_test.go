package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/pixelgrade/internal/domain"
)

func BenchmarkRendererPresetJPEG(b *testing.B) {
	renderer, err := NewLocalRenderer()
	if err != nil {
		b.Fatalf("new local renderer: %v", err)
	}

	asset := domain.Asset{
		ID:          "bench",
		Name:        "bench.png",
		Source:      buildTestPNG(b, 1920, 1080),
		Adjustments: domain.Adjustments{Exposure: 10, Contrast: 20, Saturation: -15, Shadows: 30},
	}
	settings := domain.ExportSettings{Format: domain.FormatJPEG, Quality: 0.85, Size: domain.PresetSize(800)}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := renderer.Render(context.Background(), asset, settings); err != nil {
			b.Fatalf("render: %v", err)
		}
	}
}
