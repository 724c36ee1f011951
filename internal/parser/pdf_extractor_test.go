package parser

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuietExtractor() *PDFLayoutExtractor {
	return NewPDFLayoutExtractor(WithLayoutLogger(log.New(io.Discard, "", 0)))
}

// TestExtractFromBytesInvalidPDF 验证非PDF字节返回格式错误
func TestExtractFromBytesInvalidPDF(t *testing.T) {
	extractor := newQuietExtractor()

	_, _, err := extractor.ExtractFromBytes(context.Background(), []byte("this is not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

// TestExtractFromBytesEmptyInput 验证空输入返回格式错误
func TestExtractFromBytesEmptyInput(t *testing.T) {
	extractor := newQuietExtractor()

	_, _, err := extractor.ExtractFromBytes(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

// TestExtractFromBytesTruncatedPDF 验证截断的PDF头不会panic而是报错
func TestExtractFromBytesTruncatedPDF(t *testing.T) {
	extractor := newQuietExtractor()

	_, _, err := extractor.ExtractFromBytes(context.Background(), []byte("%PDF-1.7\n1 0 obj\n<<"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

// TestCoalesceRunsMergesSameBaseline 验证同基线相邻运行合并为一个片段
func TestCoalesceRunsMergesSameBaseline(t *testing.T) {
	runs := []textRun{
		{X: 10, Y: 700, W: 30, FontSize: 10, Text: "Ali"},
		{X: 40, Y: 700, W: 20, FontSize: 10, Text: "ce"},
	}

	fragments := coalesceRuns(runs, 792)
	require.Len(t, fragments, 1)
	assert.Equal(t, "Alice", fragments[0].Text)
	assert.Equal(t, 10.0, fragments[0].X0)
	assert.Equal(t, 60.0, fragments[0].X1)
}

// TestCoalesceRunsInsertsSpaceOnWordGap 验证超过词距阈值的间隔补一个空格
func TestCoalesceRunsInsertsSpaceOnWordGap(t *testing.T) {
	// 字号10，词距阈值2.5，间隔5应补空格
	runs := []textRun{
		{X: 10, Y: 700, W: 30, FontSize: 10, Text: "Alice"},
		{X: 45, Y: 700, W: 30, FontSize: 10, Text: "Smith"},
	}

	fragments := coalesceRuns(runs, 792)
	require.Len(t, fragments, 1)
	assert.Equal(t, "Alice Smith", fragments[0].Text)
}

// TestCoalesceRunsSplitsOnColumnGap 验证超过断块阈值的间隔分成独立片段
func TestCoalesceRunsSplitsOnColumnGap(t *testing.T) {
	// 字号10，断块阈值25，间隔100是典型的多列布局列间距
	runs := []textRun{
		{X: 10, Y: 700, W: 30, FontSize: 10, Text: "left column"},
		{X: 140, Y: 700, W: 30, FontSize: 10, Text: "right column"},
	}

	fragments := coalesceRuns(runs, 792)
	require.Len(t, fragments, 2)
	assert.Equal(t, "left column", fragments[0].Text)
	assert.Equal(t, "right column", fragments[1].Text)
	assert.NotEqual(t, fragments[0].Block, fragments[1].Block)
}

// TestCoalesceRunsNeverMergesAcrossBaselines 验证不同基线的运行永不合并
func TestCoalesceRunsNeverMergesAcrossBaselines(t *testing.T) {
	// 水平上完全相邻，但基线相差一个行高
	runs := []textRun{
		{X: 10, Y: 700, W: 30, FontSize: 10, Text: "line one"},
		{X: 40, Y: 688, W: 30, FontSize: 10, Text: "line two"},
	}

	fragments := coalesceRuns(runs, 792)
	require.Len(t, fragments, 2)
	assert.Equal(t, "line one", fragments[0].Text)
	assert.Equal(t, "line two", fragments[1].Text)
}

// TestCoalesceRunsBaselineJitterWithinTolerance 验证0.5以内的基线抖动仍视为同一行
func TestCoalesceRunsBaselineJitterWithinTolerance(t *testing.T) {
	runs := []textRun{
		{X: 10, Y: 700.0, W: 30, FontSize: 10, Text: "jit"},
		{X: 40, Y: 700.3, W: 20, FontSize: 10, Text: "ter"},
	}

	fragments := coalesceRuns(runs, 792)
	require.Len(t, fragments, 1)
	assert.Equal(t, "jitter", fragments[0].Text)
}

// TestCoalesceRunsFlipsYAxis 验证PDF向上的y坐标被翻转为向下增长
func TestCoalesceRunsFlipsYAxis(t *testing.T) {
	runs := []textRun{
		{X: 10, Y: 100, W: 30, FontSize: 10, Text: "bottom"},
		{X: 10, Y: 700, W: 30, FontSize: 10, Text: "top"},
	}

	fragments := coalesceRuns(runs, 792)
	require.Len(t, fragments, 2)
	// 排序后页面上方的运行在前，且翻转后其Y0更小
	assert.Equal(t, "top", fragments[0].Text)
	assert.Less(t, fragments[0].Y0, fragments[1].Y0)
}

// TestCoalesceRunsDoesNotMutateInput 验证合并不改变调用方的切片
func TestCoalesceRunsDoesNotMutateInput(t *testing.T) {
	runs := []textRun{
		{X: 10, Y: 100, W: 30, FontSize: 10, Text: "second"},
		{X: 10, Y: 700, W: 30, FontSize: 10, Text: "first"},
	}

	_ = coalesceRuns(runs, 792)
	assert.Equal(t, "second", runs[0].Text, "输入切片的顺序不应被改变")
}
