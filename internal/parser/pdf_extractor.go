package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dslipak/pdf"
)

var (
	// ErrInvalidPDF 源文档无法作为PDF打开或解析
	ErrInvalidPDF = errors.New("无法解析的PDF文档")
	// ErrNoTextContent 所有页面都没有可提取的文本片段
	ErrNoTextContent = errors.New("PDF中没有可提取的文本")
)

// PDFLayoutExtractor 基于页面几何信息的PDF文本提取器
// 将每页的定位文本片段按近似阅读顺序重建为文本，支持多列等复杂版式
type PDFLayoutExtractor struct {
	logger *log.Logger
}

// LayoutOption PDF提取器的配置选项
type LayoutOption func(*PDFLayoutExtractor)

// WithLayoutLogger 配置自定义日志记录器
func WithLayoutLogger(logger *log.Logger) LayoutOption {
	return func(e *PDFLayoutExtractor) {
		e.logger = logger
	}
}

// NewPDFLayoutExtractor 创建PDF布局提取器
func NewPDFLayoutExtractor(options ...LayoutOption) *PDFLayoutExtractor {
	extractor := &PDFLayoutExtractor{
		logger: log.New(os.Stderr, "[PDF解析器] ", log.LstdFlags),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// ExtractFromBytes 从字节数组提取全文
func (e *PDFLayoutExtractor) ExtractFromBytes(ctx context.Context, data []byte) (string, map[string]interface{}, error) {
	return e.ExtractFromReader(ctx, bytes.NewReader(data), int64(len(data)))
}

// ExtractFromReader 从 io.ReaderAt 提取全文
// 返回: 重建的文档文本, 提取元数据, 错误
func (e *PDFLayoutExtractor) ExtractFromReader(ctx context.Context, reader io.ReaderAt, size int64) (text string, meta map[string]interface{}, err error) {
	startTime := time.Now()

	// 底层内容流解码在损坏的PDF上会panic，统一转换为输入格式错误
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("PDF解码panic: %v", r)
			text, meta = "", nil
			err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	doc, err := pdf.NewReader(reader, size)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	pageCount := doc.NumPage()
	pages := make([][]string, 0, pageCount)
	totalFragments := 0

	for i := 1; i <= pageCount; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}

		fragments := pageFragments(page)
		totalFragments += len(fragments)
		pages = append(pages, ExtractPageLines(fragments))
	}

	assembled := AssembleDocumentText(pages)
	duration := time.Since(startTime)

	if assembled == "" {
		e.logger.Printf("PDF无可提取文本: %d页, 用时 %.2f秒", pageCount, duration.Seconds())
		return "", nil, ErrNoTextContent
	}

	meta = map[string]interface{}{
		"page_count":             pageCount,
		"fragment_count":         totalFragments,
		"text_length":            len(assembled),
		"processing_duration_ms": duration.Milliseconds(),
	}

	e.logger.Printf("PDF提取完成: %d页, %d个片段, %d个字符 (用时 %.2f秒)",
		pageCount, totalFragments, len(assembled), duration.Seconds())
	return assembled, meta, nil
}

// textRun 一个定位文本运行，坐标沿用PDF约定（y轴向上，Y为基线）
type textRun struct {
	X, Y, W  float64
	FontSize float64
	Text     string
}

// pageFragments 将一页的文本运行(text run)转换为TextFragment
func pageFragments(page pdf.Page) []TextFragment {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	runs := make([]textRun, 0, len(content.Text))
	for _, t := range content.Text {
		runs = append(runs, textRun{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, Text: t.S})
	}
	return coalesceRuns(runs, mediaBoxHeight(page))
}

// coalesceRuns 将同基线且水平相邻的运行合并为片段
// PDF坐标系y轴向上，这里翻转为向下增长；不改变传入的切片
func coalesceRuns(runs []textRun, pageHeight float64) []TextFragment {
	sorted := make([]textRun, len(runs))
	copy(sorted, runs)

	// 预排序仅用于合并：按基线从上到下、行内从左到右
	sortRunsForMerge(sorted)

	var fragments []TextFragment
	var current *TextFragment
	var lastRun textRun
	block := 0

	for _, run := range sorted {
		if run.Text == "" {
			continue
		}

		if current != nil && sameBaseline(lastRun, run) {
			gap := run.X - (lastRun.X + lastRun.W)
			if gap <= breakGap(run.FontSize) {
				// 同一片段内：间距明显时补一个空格
				if gap > spaceGap(run.FontSize) {
					current.Text += " "
				}
				current.Text += run.Text
				if x1 := run.X + run.W; x1 > current.X1 {
					current.X1 = x1
				}
				lastRun = run
				continue
			}
		}

		if current != nil {
			fragments = append(fragments, *current)
		}
		block++
		current = &TextFragment{
			X0:    run.X,
			Y0:    pageHeight - (run.Y + run.FontSize),
			X1:    run.X + run.W,
			Y1:    pageHeight - run.Y,
			Text:  run.Text,
			Block: block,
		}
		lastRun = run
	}
	if current != nil {
		fragments = append(fragments, *current)
	}
	return fragments
}

// sortRunsForMerge 按PDF坐标基线从上到下(y降序)、行内从左到右排序
func sortRunsForMerge(runs []textRun) {
	for i := 1; i < len(runs); i++ {
		for j := i; j > 0 && runBefore(runs[j], runs[j-1]); j-- {
			runs[j], runs[j-1] = runs[j-1], runs[j]
		}
	}
}

func runBefore(a, b textRun) bool {
	if !sameBaseline(a, b) {
		return a.Y > b.Y // PDF坐标y向上，大的在页面上方
	}
	return a.X < b.X
}

// sameBaseline 两个运行是否落在同一文本基线上
func sameBaseline(a, b textRun) bool {
	const tolerance = 0.5
	diff := a.Y - b.Y
	return diff < tolerance && diff > -tolerance
}

// spaceGap 超过该间距视为单词间隔
func spaceGap(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = 10
	}
	return fontSize * 0.25
}

// breakGap 超过该间距视为独立片段（典型场景：多列布局的列间距）
func breakGap(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = 10
	}
	return fontSize * 2.5
}

// mediaBoxHeight 读取页面MediaBox高度，用于翻转y坐标；取不到时退回US Letter
func mediaBoxHeight(page pdf.Page) float64 {
	mediaBox := page.V.Key("MediaBox")
	if mediaBox.IsNull() || mediaBox.Len() < 4 {
		return 792
	}
	y0 := mediaBox.Index(1).Float64()
	y1 := mediaBox.Index(3).Float64()
	if y1 <= y0 {
		return 792
	}
	return y1 - y0
}
