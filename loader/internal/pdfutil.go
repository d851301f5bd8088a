package internal

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ValidatePDF rejects files pdfcpu cannot parse before they are sent for
// conversion.
func ValidatePDF(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("invalid PDF %s: %w", path, err)
	}
	return nil
}

// CropToTemp writes a copy of the PDF with top and bottom points trimmed from
// every page, dropping running headers and footers. The caller removes the
// returned file. With nothing to trim the input path is returned as is.
func CropToTemp(inputPath string, top, bottom float64) (string, func(), error) {
	noop := func() {}
	if top <= 0 && bottom <= 0 {
		return inputPath, noop, nil
	}

	tmp, err := os.CreateTemp("", "wellrag-crop-*.pdf")
	if err != nil {
		return "", noop, err
	}
	outputPath := tmp.Name()
	tmp.Close()
	cleanup := func() { os.Remove(outputPath) }

	if err := RemoveHeaderFooterCrop(inputPath, outputPath, top, bottom); err != nil {
		cleanup()
		return "", noop, err
	}
	return outputPath, cleanup, nil
}

// RemoveHeaderFooterCrop crops top and bottom margins, given in points
// (1 pt = 1/72 inch), from every page.
func RemoveHeaderFooterCrop(inputPath, outputPath string, top, bottom float64) error {
	conf := model.NewDefaultConfiguration()

	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(inputPath, outputPath, []string{"1-"}, box, conf); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}
	return nil
}
