package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseExtractionResponseCleanJSON 验证纯JSON响应的解析
func TestParseExtractionResponseCleanJSON(t *testing.T) {
	response := `{
		"name": "Alice Smith",
		"email": "alice@example.com",
		"phone": null,
		"summary": "Backend engineer.",
		"skills": ["Go", "MySQL"],
		"experience": [{"company": "Acme", "role": "Engineer", "start_date": "2020", "end_date": null, "description": "Built systems."}],
		"education": [{"institution": "State University", "degree": "BSc", "start_year": "2014", "end_year": "2018"}]
	}`

	record, err := ParseExtractionResponse(response)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "Alice Smith", record.DisplayName())
	require.NotNil(t, record.Email)
	assert.Equal(t, "alice@example.com", *record.Email)
	assert.Nil(t, record.Phone)
	assert.Equal(t, []string{"Go", "MySQL"}, record.Skills)
	require.Len(t, record.Experience, 1)
	assert.Nil(t, record.Experience[0].EndDate)
	require.Len(t, record.Education, 1)
}

// TestParseExtractionResponseWithSurroundingText 验证JSON前后的说明文字被剥离
func TestParseExtractionResponseWithSurroundingText(t *testing.T) {
	response := "Here is the extracted data:\n```json\n" +
		`{"name": "Bob", "skills": []}` +
		"\n```\nLet me know if you need anything else."

	record, err := ParseExtractionResponse(response)
	require.NoError(t, err)
	assert.Equal(t, "Bob", record.DisplayName())
}

// TestParseExtractionResponseNoJSON 验证完全没有JSON时返回哨兵错误
func TestParseExtractionResponseNoJSON(t *testing.T) {
	_, err := ParseExtractionResponse("I could not parse this resume.")
	assert.ErrorIs(t, err, ErrUnparseableResponse)
}

// TestParseExtractionResponseMalformedJSON 验证语法错误的JSON返回哨兵错误
func TestParseExtractionResponseMalformedJSON(t *testing.T) {
	_, err := ParseExtractionResponse(`{"name": "Bob", "skills": [}`)
	assert.ErrorIs(t, err, ErrUnparseableResponse)
}

// TestNewGeminiExtractorRequiresAPIKey 验证缺失API密钥时直接报错
func TestNewGeminiExtractorRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiExtractor(context.Background(), "", "gemini-2.5-flash")
	assert.Error(t, err)
}
