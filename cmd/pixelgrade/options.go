package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dunamismax/pixelgrade/internal/batch"
	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type options struct {
	Files        []string
	Settings     domain.ExportSettings
	Adjustments  domain.Adjustments
	Crop         *domain.CropRegion
	OutDir       string
	Zip          bool
	ArchiveLabel string
	LogLevel     string
}

var adjustmentFlags = []string{"exposure", "contrast", "saturation", "temperature", "tint", "highlights", "shadows"}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("pixelgrade", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pixelgrade [flags] files...\n\n")
		fs.PrintDefaults()
	}

	fs.StringP("format", "f", "jpeg", "output format: jpeg, png, webp or avif")
	fs.Float64P("quality", "q", 0.9, "lossy quality between 0.1 and 1")
	fs.StringP("size", "s", "original", "output size: original or a preset longest edge (250, 500, 800, 1080)")
	fs.Int("custom-size", 0, "custom longest edge in pixels, overrides --size")
	for _, name := range adjustmentFlags {
		fs.Int(name, 0, name+" adjustment between -100 and 100")
	}
	fs.String("crop", "", "crop region applied to every image as x,y,w,h")
	fs.StringP("out", "o", ".", "output directory")
	fs.Bool("zip", false, "write one archive instead of individual files")
	fs.String("archive-name", batch.DefaultArchiveName, "archive file name used with --zip")
	fs.String("log-level", "warn", "log level")
	return fs
}

// parseOptions reads flags, falling back to PIXELGRADE_* environment
// variables for anything not given on the command line.
func parseOptions(args []string) (options, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("pixelgrade")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return options{}, fmt.Errorf("bind flags: %w", err)
	}

	opts := options{
		Files:        fs.Args(),
		OutDir:       v.GetString("out"),
		Zip:          v.GetBool("zip"),
		ArchiveLabel: v.GetString("archive-name"),
		LogLevel:     v.GetString("log-level"),
	}
	if len(opts.Files) == 0 {
		return options{}, errors.New("at least one input file is required")
	}

	format, err := domain.ParseFormat(v.GetString("format"))
	if err != nil {
		return options{}, err
	}
	size, err := parseSize(v.GetString("size"), v.GetInt("custom-size"))
	if err != nil {
		return options{}, err
	}
	opts.Settings = domain.ExportSettings{
		Format:  format,
		Quality: v.GetFloat64("quality"),
		Size:    size,
	}
	if err := opts.Settings.Validate(); err != nil {
		return options{}, err
	}

	opts.Adjustments = domain.Adjustments{
		Exposure:    v.GetInt("exposure"),
		Contrast:    v.GetInt("contrast"),
		Saturation:  v.GetInt("saturation"),
		Temperature: v.GetInt("temperature"),
		Tint:        v.GetInt("tint"),
		Highlights:  v.GetInt("highlights"),
		Shadows:     v.GetInt("shadows"),
	}

	if raw := strings.TrimSpace(v.GetString("crop")); raw != "" {
		crop, err := parseCrop(raw)
		if err != nil {
			return options{}, err
		}
		opts.Crop = &crop
	}
	return opts, nil
}

func parseSize(size string, custom int) (domain.SizePolicy, error) {
	if custom < 0 {
		return domain.SizePolicy{}, fmt.Errorf("%w: custom size must be positive", domain.ErrInvalidSettings)
	}
	if custom > 0 {
		return domain.CustomSize(custom), nil
	}

	size = strings.ToLower(strings.TrimSpace(size))
	if size == "" || size == string(domain.SizeOriginal) {
		return domain.OriginalSize(), nil
	}
	pixels, err := strconv.Atoi(strings.TrimSuffix(size, "px"))
	if err != nil || !slices.Contains(domain.PresetSizes, pixels) {
		return domain.SizePolicy{}, fmt.Errorf("%w: size must be original or one of %v", domain.ErrInvalidSettings, domain.PresetSizes)
	}
	return domain.PresetSize(pixels), nil
}

func parseCrop(raw string) (domain.CropRegion, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return domain.CropRegion{}, fmt.Errorf("%w: crop must be x,y,w,h", domain.ErrInvalidCrop)
	}
	var vals [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return domain.CropRegion{}, fmt.Errorf("%w: crop value %q is not an integer", domain.ErrInvalidCrop, part)
		}
		vals[i] = n
	}
	crop := domain.CropRegion{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if err := crop.Validate(); err != nil {
		return domain.CropRegion{}, fmt.Errorf("%w: %v", domain.ErrInvalidCrop, err)
	}
	return crop, nil
}
