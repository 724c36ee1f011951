package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/types"
)

func strPtr(s string) *string {
	return &s
}

//
// 各依赖接口的测试替身
//

type fakePDFExtractor struct {
	text string
	meta map[string]interface{}
	err  error
}

func (f *fakePDFExtractor) ExtractFromBytes(ctx context.Context, data []byte) (string, map[string]interface{}, error) {
	return f.text, f.meta, f.err
}

type fakeFieldExtractor struct {
	record     *types.ResumeRecord
	extractErr error

	summary      string
	summarizeErr error
	summarized   bool
}

func (f *fakeFieldExtractor) ExtractResumeFields(ctx context.Context, resumeText string) (*types.ResumeRecord, error) {
	return f.record, f.extractErr
}

func (f *fakeFieldExtractor) SummarizeSearchResults(ctx context.Context, question string, results []types.SearchResultItem) (string, error) {
	f.summarized = true
	return f.summary, f.summarizeErr
}

type fakeEmbedder struct {
	dimension int
	err       error
	gotTexts  []string
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	f.gotTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vector := make([]float64, f.dimension)
		for j := range vector {
			vector[j] = float64(i + 1)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

type fakeVectorIndex struct {
	upsertErr error
	gotChunks []types.ResumeChunk

	searchResults []types.SearchResultItem
	searchErr     error
	gotLimit      int
}

func (f *fakeVectorIndex) UpsertChunkVectors(ctx context.Context, chunks []types.ResumeChunk, vectors [][]float64) ([]string, error) {
	f.gotChunks = chunks
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = fmt.Sprintf("point-%d", i)
	}
	return ids, nil
}

func (f *fakeVectorIndex) Search(ctx context.Context, queryVector []float64, limit int) ([]types.SearchResultItem, error) {
	f.gotLimit = limit
	return f.searchResults, f.searchErr
}

type fakeFileStore struct {
	uploadErr error
	gotExt    string
}

func (f *fakeFileStore) UploadResumeFileStreaming(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	f.gotExt = fileExt
	if f.uploadErr != nil {
		return "", "", f.uploadErr
	}
	return fmt.Sprintf("resume/%s/original%s", resumeID, fileExt), "md5hex", nil
}

type fakeDedupStore struct {
	exists     bool
	existingID string
	checkErr   error

	recordedMD5 string
	recordedID  string
}

func (f *fakeDedupStore) CheckRawFileMD5Exists(ctx context.Context, md5Hex string) (bool, error) {
	return f.exists, f.checkErr
}

func (f *fakeDedupStore) RecordRawFileMD5(ctx context.Context, md5Hex, resumeID string) error {
	f.recordedMD5 = md5Hex
	f.recordedID = resumeID
	return nil
}

func (f *fakeDedupStore) GetResumeIDByMD5(ctx context.Context, md5Hex string) (string, error) {
	return f.existingID, nil
}

// newTestProcessor 组装带可控替身的处理器
func newTestProcessor(record *types.ResumeRecord) (*ResumeProcessor, *fakeVectorIndex, *fakeFieldExtractor) {
	index := &fakeVectorIndex{}
	extractor := &fakeFieldExtractor{record: record}
	p := NewResumeProcessor(
		WithPDFExtractor(&fakePDFExtractor{text: "resume full text", meta: map[string]interface{}{"page_count": 1}}),
		WithFieldExtractor(extractor),
		WithEmbedder(&fakeEmbedder{dimension: 4}),
		WithVectorIndex(index),
	)
	return p, index, extractor
}

// TestProcessResumeFullPipeline 验证完整摄入流水线
func TestProcessResumeFullPipeline(t *testing.T) {
	record := &types.ResumeRecord{
		Name:    strPtr("Alice"),
		Summary: strPtr("Backend engineer."),
		Skills:  []string{"Go", "MySQL"},
	}
	p, index, _ := newTestProcessor(record)
	fileStore := &fakeFileStore{}
	dedup := &fakeDedupStore{}
	p.FileStore = fileStore
	p.DedupStore = dedup

	result, err := p.ProcessResume(context.Background(), []byte("%PDF-1.4 fake"), "alice_resume.PDF")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Duplicate)
	assert.NotEmpty(t, result.ResumeID)
	assert.Equal(t, 3, result.ChunkCount, "summary + 2技能")
	assert.Len(t, result.PointIDs, 3)
	assert.Equal(t, record, result.Record)
	assert.Equal(t, 1, result.Meta["page_count"])

	// 扩展名统一小写
	assert.Equal(t, ".pdf", fileStore.gotExt)

	// 分块以该简历的ID做溯源
	require.Len(t, index.gotChunks, 3)
	assert.Equal(t, result.ResumeID, index.gotChunks[0].Metadata["resume_id"])

	// 成功后才记录MD5
	assert.NotEmpty(t, dedup.recordedMD5)
	assert.Equal(t, result.ResumeID, dedup.recordedID)
}

// TestProcessResumeDuplicateShortCircuit 验证MD5命中时短路返回已有简历ID
func TestProcessResumeDuplicateShortCircuit(t *testing.T) {
	p, index, _ := newTestProcessor(&types.ResumeRecord{Skills: []string{"Go"}})
	p.DedupStore = &fakeDedupStore{exists: true, existingID: "resume-existing"}

	result, err := p.ProcessResume(context.Background(), []byte("same bytes"), "dup.pdf")
	require.NoError(t, err)

	assert.True(t, result.Duplicate)
	assert.Equal(t, "resume-existing", result.ResumeID)
	assert.Zero(t, result.ChunkCount)
	assert.Nil(t, index.gotChunks, "重复文件不应进入后续流水线")
}

// TestProcessResumeDedupMappingExpired 验证集合命中但ID映射过期时按新文件处理
func TestProcessResumeDedupMappingExpired(t *testing.T) {
	p, index, _ := newTestProcessor(&types.ResumeRecord{Skills: []string{"Go"}})
	dedup := &fakeDedupStore{exists: true, existingID: ""}
	p.DedupStore = dedup

	result, err := p.ProcessResume(context.Background(), []byte("bytes"), "a.pdf")
	require.NoError(t, err)

	assert.False(t, result.Duplicate, "映射缺失时不应报告为重复")
	assert.NotEmpty(t, result.ResumeID)
	assert.Equal(t, 1, result.ChunkCount)
	require.Len(t, index.gotChunks, 1)
	assert.Equal(t, result.ResumeID, dedup.recordedID, "重新处理后应刷新MD5映射")
}

// TestProcessResumeDedupCheckFailureContinues 验证去重检查失败时降级为继续处理
func TestProcessResumeDedupCheckFailureContinues(t *testing.T) {
	p, _, _ := newTestProcessor(&types.ResumeRecord{Skills: []string{"Go"}})
	p.DedupStore = &fakeDedupStore{checkErr: errors.New("redis unavailable")}

	result, err := p.ProcessResume(context.Background(), []byte("bytes"), "a.pdf")
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, result.ChunkCount)
}

// TestProcessResumeEmptyFile 验证空文件直接报解析错误
func TestProcessResumeEmptyFile(t *testing.T) {
	p, _, _ := newTestProcessor(&types.ResumeRecord{})
	_, err := p.ProcessResume(context.Background(), nil, "empty.pdf")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

// TestProcessResumeNoTextContent 验证无文本PDF映射到对应哨兵错误
func TestProcessResumeNoTextContent(t *testing.T) {
	p, _, _ := newTestProcessor(&types.ResumeRecord{})
	p.PDFExtractor = &fakePDFExtractor{err: fmt.Errorf("提取失败: %w", parser.ErrNoTextContent)}

	_, err := p.ProcessResume(context.Background(), []byte("scanned image pdf"), "scan.pdf")
	assert.ErrorIs(t, err, ErrNoTextContent)
}

// TestProcessResumeUploadFailure 验证对象存储失败终止流水线
func TestProcessResumeUploadFailure(t *testing.T) {
	p, index, _ := newTestProcessor(&types.ResumeRecord{Skills: []string{"Go"}})
	p.FileStore = &fakeFileStore{uploadErr: errors.New("minio down")}

	_, err := p.ProcessResume(context.Background(), []byte("bytes"), "a.pdf")
	assert.ErrorIs(t, err, ErrStoreFileFailed)
	assert.Nil(t, index.gotChunks)
}

// TestProcessResumeNoChunks 验证无可索引内容时跳过嵌入与写入
func TestProcessResumeNoChunks(t *testing.T) {
	p, index, _ := newTestProcessor(&types.ResumeRecord{})

	result, err := p.ProcessResume(context.Background(), []byte("bytes"), "a.pdf")
	require.NoError(t, err)
	assert.Zero(t, result.ChunkCount)
	assert.Empty(t, result.PointIDs)
	assert.Nil(t, index.gotChunks, "没有分块时不应触碰向量索引")
}

// TestSearchResumesEmptyQuery 验证空白查询直接报错
func TestSearchResumesEmptyQuery(t *testing.T) {
	p, _, _ := newTestProcessor(&types.ResumeRecord{})
	_, err := p.SearchResumes(context.Background(), "   \t ", 5, false)
	assert.ErrorIs(t, err, ErrInvalidSearchQuery)
}

// TestSearchResumesPassesLimit 验证limit透传给向量索引
func TestSearchResumesPassesLimit(t *testing.T) {
	p, index, _ := newTestProcessor(&types.ResumeRecord{})
	index.searchResults = []types.SearchResultItem{{ID: "p1", Score: 0.9}}

	output, err := p.SearchResumes(context.Background(), "golang backend", 7, false)
	require.NoError(t, err)
	assert.Equal(t, 7, index.gotLimit)
	require.Len(t, output.Results, 1)
	assert.Equal(t, "p1", output.Results[0].ID)
	assert.Empty(t, output.Summary)
}

// TestSearchResumesWithSummary 验证summarize开启时附带摘要
func TestSearchResumesWithSummary(t *testing.T) {
	p, index, extractor := newTestProcessor(&types.ResumeRecord{})
	index.searchResults = []types.SearchResultItem{{ID: "p1", Score: 0.9}}
	extractor.summary = "找到一位匹配的Go后端工程师。"

	output, err := p.SearchResumes(context.Background(), "golang backend", 5, true)
	require.NoError(t, err)
	assert.True(t, extractor.summarized)
	assert.Equal(t, "找到一位匹配的Go后端工程师。", output.Summary)
}

// TestSearchResumesSummaryFailureKeepsResults 验证摘要失败不影响检索结果
func TestSearchResumesSummaryFailureKeepsResults(t *testing.T) {
	p, index, extractor := newTestProcessor(&types.ResumeRecord{})
	index.searchResults = []types.SearchResultItem{{ID: "p1", Score: 0.9}}
	extractor.summarizeErr = errors.New("model overloaded")

	output, err := p.SearchResumes(context.Background(), "golang backend", 5, true)
	require.NoError(t, err)
	require.Len(t, output.Results, 1)
	assert.Empty(t, output.Summary)
}

// TestSearchResumesNoResultsSkipsSummary 验证空结果时不调用摘要
func TestSearchResumesNoResultsSkipsSummary(t *testing.T) {
	p, _, extractor := newTestProcessor(&types.ResumeRecord{})

	output, err := p.SearchResumes(context.Background(), "cobol mainframe", 5, true)
	require.NoError(t, err)
	assert.Empty(t, output.Results)
	assert.False(t, extractor.summarized)
}

// TestFileExtension 验证扩展名解析的边界情况
func TestFileExtension(t *testing.T) {
	assert.Equal(t, ".pdf", fileExtension("resume.pdf"))
	assert.Equal(t, ".pdf", fileExtension("Resume.PDF"))
	assert.Equal(t, ".docx", fileExtension("resume.docx"))
	assert.Equal(t, ".pdf", fileExtension("noextension"))
	assert.Equal(t, ".pdf", fileExtension("trailingdot."))
}
