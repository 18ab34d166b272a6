// Package render turns summarized articles into the PDF and MP3 artifacts.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/news"
	"github.com/deusflow/newsletter/internal/newsletter"
)

const (
	pageMargin     = 19.05 // 0.75in in mm
	maxImageWidth  = 141.0 // ~400pt
	maxImageHeight = 70.5  // ~200pt
	maxImageBytes  = 10 << 20
	dateLayout     = "January 02, 2006"
)

type rgb struct{ r, g, b int }

var (
	gray      = rgb{128, 128, 128}
	darkGray  = rgb{169, 169, 169}
	lightGray = rgb{211, 211, 211}
	black     = rgb{0, 0, 0}
	linkBlue  = rgb{0, 0, 255}
	boxFill   = rgb{242, 242, 242}
)

// PDFRenderer lays out a newsletter with go-pdf/fpdf.
type PDFRenderer struct {
	client *http.Client
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewPDFRenderer(log logrus.FieldLogger) *PDFRenderer {
	return &PDFRenderer{
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		now:    time.Now,
	}
}

// RenderPDF writes the newsletter PDF to path, creating its directory.
func (p *PDFRenderer) RenderPDF(ctx context.Context, articles []news.SummarizedArticle, overallSummary string, style newsletter.Style, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	style = style.WithDefaults()
	primary := parseHexColor(style.PrimaryColor, newsletter.DefaultPrimaryColor)
	secondary := parseHexColor(style.SecondaryColor, newsletter.DefaultSecondaryColor)
	family := fontFamily(style.FontStyle)

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*pageMargin

	// Header
	pdf.SetFont(family, "B", 28)
	setText(pdf, primary)
	pdf.CellFormat(0, 14, tr("Your Daily Newsletter"), "", 1, "C", false, 0, "")
	pdf.SetFont(family, "", 12)
	setText(pdf, gray)
	pdf.CellFormat(0, 8, p.now().Format(dateLayout), "", 1, "C", false, 0, "")
	pdf.Ln(3)
	rule(pdf, primary, 0.7, contentW)
	pdf.Ln(7)

	if overallSummary != "" {
		pdf.SetFont(family, "B", 14)
		setText(pdf, primary)
		pdf.CellFormat(0, 8, tr("Today's Highlights"), "", 1, "L", false, 0, "")
		pdf.Ln(2)
		pdf.SetFont(family, "", 11)
		setText(pdf, darkGray)
		pdf.SetFillColor(boxFill.r, boxFill.g, boxFill.b)
		pdf.MultiCell(0, 5.6, tr(overallSummary), "", "J", true)
		pdf.Ln(7)
	}

	if len(articles) > 0 {
		pdf.SetFont(family, "", 12)
		setText(pdf, darkGray)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("Today's edition features %d curated articles just for you.", len(articles))), "", 1, "C", false, 0, "")
		pdf.Ln(6)
	}

	for i, a := range articles {
		if i > 0 {
			pdf.Ln(3)
			x := pageMargin + contentW*0.1
			pdf.SetDrawColor(lightGray.r, lightGray.g, lightGray.b)
			pdf.SetLineWidth(0.2)
			pdf.Line(x, pdf.GetY(), x+contentW*0.8, pdf.GetY())
			pdf.Ln(5)
		}

		title := a.Title
		if title == "" {
			title = "Untitled"
		}
		pdf.SetFont(family, "B", 14)
		setText(pdf, primary)
		pdf.MultiCell(0, 7, tr(title), "", "L", false)
		pdf.Ln(1)

		pdf.SetFont(family, "", 9)
		setText(pdf, secondary)
		pdf.CellFormat(0, 5, tr(orDefault(a.Source, "Unknown")+" | "+orDefault(a.Published, "Today")), "", 1, "L", false, 0, "")
		pdf.Ln(1)

		if a.ImageURL != "" {
			p.placeImage(ctx, pdf, a.ImageURL, fmt.Sprintf("article-%d", i), contentW)
		}

		pdf.SetFont(family, "", 11)
		setText(pdf, black)
		pdf.MultiCell(0, 5, tr(a.DisplaySummary()), "", "J", false)
		pdf.Ln(2)

		if a.Link != "" {
			pdf.SetFont(family, "U", 10)
			setText(pdf, linkBlue)
			pdf.WriteLinkString(5, tr("Read full article"), a.Link)
			pdf.Ln(8)
		}
	}

	pdf.Ln(10)
	rule(pdf, secondary, 0.35, contentW)
	pdf.Ln(4)
	pdf.SetFont(family, "", 9)
	setText(pdf, gray)
	pdf.CellFormat(0, 5, tr("Generated by Your Personal Newsletter App"), "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// placeImage downloads and embeds an image. Any failure just skips it.
func (p *PDFRenderer) placeImage(ctx context.Context, pdf *fpdf.Fpdf, url, name string, contentW float64) {
	log := p.log.WithField("image", url)

	data, err := p.download(ctx, url)
	if err != nil {
		log.WithError(err).Debug("Error downloading image")
		return
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		log.Debug("Unsupported image")
		return
	}
	imageType := map[string]string{"jpeg": "JPG", "png": "PNG", "gif": "GIF"}[format]
	if imageType == "" {
		return
	}

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if !pdf.Ok() {
		// fpdf errors are sticky; an undecodable image would poison the whole document.
		log.WithError(pdf.Error()).Debug("Image rejected by PDF writer")
		pdf.ClearError()
		return
	}

	w, h := fitImage(float64(cfg.Width), float64(cfg.Height), maxImageWidth, maxImageHeight)
	pdf.Ln(2)
	pdf.ImageOptions(name, pageMargin+(contentW-w)/2, 0, w, h, true, opts, 0, "")
	pdf.Ln(2)
}

func (p *PDFRenderer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

// fitImage scales pixel dimensions (read as points) into the max box in mm.
func fitImage(pxW, pxH, maxW, maxH float64) (float64, float64) {
	const ptToMM = 25.4 / 72
	aspect := pxW / pxH
	w, h := pxW*ptToMM, pxH*ptToMM
	if w > maxW {
		w = maxW
		h = w / aspect
	}
	if h > maxH {
		h = maxH
		w = h * aspect
	}
	return w, h
}

func fontFamily(fontStyle string) string {
	switch strings.ToLower(fontStyle) {
	case "classic", "elegant":
		return "Times"
	default:
		return "Helvetica"
	}
}

// parseHexColor reads #rrggbb, falling back to def on malformed input.
func parseHexColor(s, def string) rgb {
	if c, ok := hexToRGB(s); ok {
		return c
	}
	c, _ := hexToRGB(def)
	return c
}

func hexToRGB(s string) (rgb, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, true
}

func setText(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}

func rule(pdf *fpdf.Fpdf, c rgb, width, length float64) {
	pdf.SetDrawColor(c.r, c.g, c.b)
	pdf.SetLineWidth(width)
	y := pdf.GetY()
	pdf.Line(pageMargin, y, pageMargin+length, y)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
