// Package pdfpage reads text, text blocks and page renders out of PDF files
// through a pdfium worker pool.
package pdfpage

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/entity"
)

// minUsableText is the smallest extractable text length that counts as a
// usable text layer. Shorter extractions are treated as scanned pages.
const minUsableText = 10

const instanceTimeout = 30 * time.Second

// Provider answers page-level questions about PDF files. Each call borrows a
// pdfium instance from the pool for its duration, so the provider is safe for
// concurrent use.
type Provider struct {
	pool pdfium.Pool
	log  *slog.Logger
}

func NewProvider(pool pdfium.Pool, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{pool: pool, log: log}
}

// PageCount returns the number of pages in the document.
func (p *Provider) PageCount(path string) (int, error) {
	instance, err := p.pool.GetInstance(instanceTimeout)
	if err != nil {
		return 0, fmt.Errorf("acquire pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, count, err := openDocument(instance, path)
	if err != nil {
		return 0, err
	}
	defer closeDocument(instance, doc)
	return count, nil
}

// Pages returns dimensions and text-layer availability for every page.
func (p *Provider) Pages(path string) ([]entity.PageInfo, error) {
	instance, err := p.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, fmt.Errorf("acquire pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, count, err := openDocument(instance, path)
	if err != nil {
		return nil, err
	}
	defer closeDocument(instance, doc)

	infos := make([]entity.PageInfo, 0, count)
	for i := 0; i < count; i++ {
		width, height, chars, err := readPage(instance, doc, i)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i+1, err)
		}
		infos = append(infos, entity.PageInfo{
			Page:    i + 1,
			Width:   width,
			Height:  height,
			HasText: len(charsToText(chars)) > minUsableText,
		})
	}
	return infos, nil
}

// HasText reports whether the page carries a usable text layer.
func (p *Provider) HasText(path string, page int) (bool, error) {
	text, err := p.Text(path, page, nil)
	if err != nil {
		return false, err
	}
	return len(text) > minUsableText, nil
}

// Text extracts the page's text, optionally clipped to a bounding box given
// as [x1, y1, x2, y2] in page points with origin at the top left.
func (p *Provider) Text(path string, page int, bbox []float64) (string, error) {
	chars, err := p.pageChars(path, page, bbox)
	if err != nil {
		return "", err
	}
	return charsToText(chars), nil
}

// Blocks extracts the page's text grouped into visual blocks, optionally
// clipped to a bounding box. Blocks are returned in reading order with
// coordinates converted to a top-left origin.
func (p *Provider) Blocks(path string, page int, bbox []float64) ([]entity.TextBlock, error) {
	chars, err := p.pageChars(path, page, bbox)
	if err != nil {
		return nil, err
	}
	return groupBlocks(chars), nil
}

// Render rasterizes a page to PNG or JPEG. scale is a multiplier over the
// page's natural 72 DPI size. It returns the encoded image and its MIME type.
func (p *Provider) Render(path string, page int, scale float64, format string) ([]byte, string, error) {
	if format != "png" && format != "jpeg" {
		return nil, "", common.Errorf(common.KindInvalidInput, "unsupported render format: %s", format)
	}
	if scale <= 0 {
		return nil, "", common.Errorf(common.KindInvalidInput, "scale must be positive, got %g", scale)
	}

	instance, err := p.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, "", fmt.Errorf("acquire pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, count, err := openDocument(instance, path)
	if err != nil {
		return nil, "", err
	}
	defer closeDocument(instance, doc)

	if page < 1 || page > count {
		return nil, "", common.Errorf(common.KindInvalidInput, "page %d out of range (1-%d)", page, count)
	}

	start := time.Now()
	render, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(scale * 72),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc,
				Index:    page - 1,
			},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("render page %d: %w", page, err)
	}

	var buf bytes.Buffer
	var mimeType string
	switch format {
	case "png":
		mimeType = "image/png"
		err = png.Encode(&buf, render.Result.Image)
	case "jpeg":
		mimeType = "image/jpeg"
		err = jpeg.Encode(&buf, render.Result.Image, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}

	p.log.Debug("pdf.render.ok", "page", page, "scale", scale, "format", format,
		"bytes", buf.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), mimeType, nil
}

// pageChar is one character with its box in top-left origin page points.
type pageChar struct {
	r    rune
	x0   float64
	y0   float64
	x1   float64
	y1   float64
	brk  bool // explicit line break before this char was consumed
}

func (p *Provider) pageChars(path string, page int, bbox []float64) ([]pageChar, error) {
	instance, err := p.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, fmt.Errorf("acquire pdfium instance: %w", err)
	}
	defer instance.Close()

	doc, count, err := openDocument(instance, path)
	if err != nil {
		return nil, err
	}
	defer closeDocument(instance, doc)

	if page < 1 || page > count {
		return nil, common.Errorf(common.KindInvalidInput, "page %d out of range (1-%d)", page, count)
	}

	_, _, chars, err := readPage(instance, doc, page-1)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", page, err)
	}

	if len(bbox) == 4 {
		chars = clipChars(chars, bbox)
	}
	return chars, nil
}

func openDocument(instance pdfium.Pdfium, path string) (references.FPDF_DOCUMENT, int, error) {
	doc, err := instance.OpenDocument(&requests.OpenDocument{
		FilePath: &path,
	})
	if err != nil {
		return "", 0, fmt.Errorf("open document %s: %w", path, err)
	}
	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		closeDocument(instance, doc.Document)
		return "", 0, fmt.Errorf("get page count: %w", err)
	}
	return doc.Document, count.PageCount, nil
}

func closeDocument(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT) {
	_, _ = instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc,
	})
}

// readPage loads one page (0-indexed) and returns its size and characters
// with boxes converted to a top-left origin.
func readPage(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT, index int) (float64, float64, []pageChar, error) {
	pageResp, err := instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: doc,
		Index:    index,
	})
	if err != nil {
		return 0, 0, nil, fmt.Errorf("load page: %w", err)
	}
	defer instance.FPDF_ClosePage(&requests.FPDF_ClosePage{
		Page: pageResp.Page,
	})

	width, err := instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{
		Page: requests.Page{ByReference: &pageResp.Page},
	})
	if err != nil {
		return 0, 0, nil, fmt.Errorf("get page width: %w", err)
	}
	height, err := instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{
		Page: requests.Page{ByReference: &pageResp.Page},
	})
	if err != nil {
		return 0, 0, nil, fmt.Errorf("get page height: %w", err)
	}
	pageHeight := float64(height.PageHeight)

	textPage, err := instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
		Page: requests.Page{ByReference: &pageResp.Page},
	})
	if err != nil {
		return 0, 0, nil, fmt.Errorf("load text page: %w", err)
	}
	defer instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{
		TextPage: textPage.TextPage,
	})

	charCount, err := instance.FPDFText_CountChars(&requests.FPDFText_CountChars{
		TextPage: textPage.TextPage,
	})
	if err != nil {
		return 0, 0, nil, fmt.Errorf("count chars: %w", err)
	}

	chars := make([]pageChar, 0, charCount.Count)
	pendingBreak := false
	for i := 0; i < charCount.Count; i++ {
		unicodeRes, err := instance.FPDFText_GetUnicode(&requests.FPDFText_GetUnicode{
			TextPage: textPage.TextPage,
			Index:    i,
		})
		if err != nil || unicodeRes.Unicode == 0 {
			continue
		}
		r := rune(unicodeRes.Unicode)
		if r == '\n' || r == '\r' {
			pendingBreak = true
			continue
		}

		charBox, err := instance.FPDFText_GetCharBox(&requests.FPDFText_GetCharBox{
			TextPage: textPage.TextPage,
			Index:    i,
		})
		if err != nil {
			continue
		}

		// pdfium boxes have their origin at the bottom left.
		chars = append(chars, pageChar{
			r:   r,
			x0:  charBox.Left,
			y0:  pageHeight - charBox.Top,
			x1:  charBox.Right,
			y1:  pageHeight - charBox.Bottom,
			brk: pendingBreak,
		})
		pendingBreak = false
	}

	return float64(width.PageWidth), pageHeight, chars, nil
}

// clipChars keeps characters whose center lies inside bbox [x1, y1, x2, y2].
func clipChars(chars []pageChar, bbox []float64) []pageChar {
	out := make([]pageChar, 0, len(chars))
	for _, c := range chars {
		cx := (c.x0 + c.x1) / 2
		cy := (c.y0 + c.y1) / 2
		if cx >= bbox[0] && cx <= bbox[2] && cy >= bbox[1] && cy <= bbox[3] {
			out = append(out, c)
		}
	}
	return out
}

func charsToText(chars []pageChar) string {
	var sb strings.Builder
	for i, c := range chars {
		if c.brk && i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteRune(c.r)
	}
	return strings.TrimSpace(sb.String())
}

// groupBlocks splits the character stream into visual blocks: lines follow
// explicit breaks, and a vertical gap larger than the running line height
// starts a new block.
func groupBlocks(chars []pageChar) []entity.TextBlock {
	if len(chars) == 0 {
		return nil
	}

	type line struct {
		chars []pageChar
	}
	var lines []line
	current := line{}
	for i, c := range chars {
		if c.brk && i > 0 && len(current.chars) > 0 {
			lines = append(lines, current)
			current = line{}
		}
		current.chars = append(current.chars, c)
	}
	if len(current.chars) > 0 {
		lines = append(lines, current)
	}

	lineTop := func(l line) float64 {
		top := l.chars[0].y0
		for _, c := range l.chars {
			if c.y0 < top {
				top = c.y0
			}
		}
		return top
	}
	lineBottom := func(l line) float64 {
		bottom := l.chars[0].y1
		for _, c := range l.chars {
			if c.y1 > bottom {
				bottom = c.y1
			}
		}
		return bottom
	}

	var blocks []entity.TextBlock
	var blockLines []line
	flush := func() {
		if len(blockLines) == 0 {
			return
		}
		b := entity.TextBlock{
			X0:      blockLines[0].chars[0].x0,
			Y0:      lineTop(blockLines[0]),
			X1:      blockLines[0].chars[0].x1,
			Y1:      lineBottom(blockLines[0]),
			BlockNo: len(blocks),
		}
		var texts []string
		for _, l := range blockLines {
			var sb strings.Builder
			for _, c := range l.chars {
				sb.WriteRune(c.r)
				if c.x0 < b.X0 {
					b.X0 = c.x0
				}
				if c.x1 > b.X1 {
					b.X1 = c.x1
				}
				if c.y0 < b.Y0 {
					b.Y0 = c.y0
				}
				if c.y1 > b.Y1 {
					b.Y1 = c.y1
				}
			}
			texts = append(texts, strings.TrimRight(sb.String(), " "))
		}
		b.Text = strings.Join(texts, "\n")
		blocks = append(blocks, b)
		blockLines = nil
	}

	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			prevHeight := lineBottom(prev) - lineTop(prev)
			gap := lineTop(l) - lineBottom(prev)
			if gap > prevHeight {
				flush()
			}
		}
		blockLines = append(blockLines, l)
	}
	flush()
	return blocks
}
