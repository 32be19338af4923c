// Package lexgo is the ingestion half of an inverted-index search engine.
//
// A SegmentIndexSession accepts a stream of document postings (document ID,
// terms with positions and optional short payloads), buffers them in a binary
// staging format (spilling to an unlinked temp file under memory pressure),
// and at commit time regroups every posting by term and drives a codec
// encoder to produce an immutable on-disk segment: delta-compressed posting
// lists, a term dictionary, segment metadata and a compact bitmap of the
// document IDs that were replaced or erased during the session.
//
// The read side consumes that bitmap through updates.Scanner and
// updates.Registry, which answer ascending-monotone membership tests so that
// newer segments can mask documents in older ones.
//
// Basic usage:
//
//	sess := lexgo.NewSegmentIndexSession()
//	doc := sess.Begin(10)
//	id, _ := sess.TermID([]byte("apple"))
//	_ = doc.Insert(id, 1, nil)
//	_ = sess.CommitDocument(doc)
//	stats, err := sess.Commit(ctx, postings.NewSession(dir))
package lexgo
