package lexgo

// FieldStatistics holds the per-segment counters written into the segment's
// id metadata file. All counters are monotone over the life of a session.
type FieldStatistics struct {
	// SumTermHits is the sum of hit counts over all (document, term) pairs.
	SumTermHits uint64
	// TotalTerms is the number of distinct terms emitted.
	TotalTerms uint64
	// SumTermsDocs is the sum of distinct document counts over all terms.
	SumTermsDocs uint64
	// DocsCount is the number of distinct documents with at least one term.
	DocsCount uint64
}

// DocumentStats holds transient per-document counters accumulated while a
// document is framed into the staging buffer. They are not persisted; a
// norms sink could consume them if a downstream ranker needs length
// normalization.
type DocumentStats struct {
	// DistinctTerms is the number of terms with at least one positional hit.
	DistinctTerms uint32
	// PositionHits is the number of hits with a non-zero position.
	PositionHits uint32
	// MaxTermFreq is the largest positional hit count of any single term.
	MaxTermFreq uint32
	// PositionOverlaps counts hits whose non-zero position equals the
	// previous hit's position (synonyms and other zero-increment tokens).
	PositionOverlaps uint32
}
