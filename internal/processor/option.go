package processor

// Option 处理器的构造选项
type Option func(*ResumeProcessor)

// WithPDFExtractor 设置PDF提取器
func WithPDFExtractor(extractor PDFExtractor) Option {
	return func(p *ResumeProcessor) {
		p.PDFExtractor = extractor
	}
}

// WithFieldExtractor 设置结构化字段抽取器
func WithFieldExtractor(extractor FieldExtractor) Option {
	return func(p *ResumeProcessor) {
		p.FieldExtractor = extractor
	}
}

// WithEmbedder 设置文本嵌入器
func WithEmbedder(embedder TextEmbedder) Option {
	return func(p *ResumeProcessor) {
		p.Embedder = embedder
	}
}

// WithVectorIndex 设置向量索引
func WithVectorIndex(index VectorIndex) Option {
	return func(p *ResumeProcessor) {
		p.VectorIndex = index
	}
}

// WithFileStore 设置原始文件存储
func WithFileStore(store FileStore) Option {
	return func(p *ResumeProcessor) {
		p.FileStore = store
	}
}

// WithDedupStore 设置MD5去重存储
func WithDedupStore(store DedupStore) Option {
	return func(p *ResumeProcessor) {
		p.DedupStore = store
	}
}

// WithResumeStore 设置简历关系数据库
func WithResumeStore(store ResumeStore) Option {
	return func(p *ResumeProcessor) {
		p.ResumeStore = store
	}
}
