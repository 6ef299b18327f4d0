package services

import (
	"context"
	"fmt"
	"sync"

	"notebook-rag-platform/models"
)

// memSourceStore holds sources in memory keyed by id.
type memSourceStore struct {
	sources map[string]models.Source
}

func newMemSourceStore() *memSourceStore {
	return &memSourceStore{sources: make(map[string]models.Source)}
}

func (s *memSourceStore) put(src models.Source) {
	s.sources[src.ID] = src
}

func (s *memSourceStore) GetSource(_ context.Context, sourceID, ownerID string) (*models.Source, error) {
	src, ok := s.sources[sourceID]
	if !ok || src.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, sourceID)
	}
	return &src, nil
}

// memVectorStore is an in-memory VectorStore with failure switches for
// exercising the indexer's cleanup path.
type memVectorStore struct {
	mu         sync.Mutex
	chunks     []models.SourceChunk
	embeddings []models.ChunkEmbedding

	failInsertChunks     bool
	failInsertEmbeddings bool
	failDelete           bool

	lastQueryNotebook string
	lastQueryOwner    string
}

func newMemVectorStore() *memVectorStore {
	return &memVectorStore{}
}

func (s *memVectorStore) InsertChunks(_ context.Context, chunks []models.SourceChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertChunks {
		return fmt.Errorf("%w: insert chunks refused", ErrStorage)
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *memVectorStore) InsertEmbeddings(_ context.Context, embeddings []models.ChunkEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertEmbeddings {
		return fmt.Errorf("%w: insert embeddings refused", ErrStorage)
	}
	s.embeddings = append(s.embeddings, embeddings...)
	return nil
}

func (s *memVectorStore) DeleteChunksBySource(_ context.Context, sourceID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return fmt.Errorf("%w: delete refused", ErrStorage)
	}
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.SourceID != sourceID || c.OwnerID != ownerID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept

	keptEmb := s.embeddings[:0]
	for _, e := range s.embeddings {
		if e.SourceID != sourceID || e.OwnerID != ownerID {
			keptEmb = append(keptEmb, e)
		}
	}
	s.embeddings = keptEmb
	return nil
}

func (s *memVectorStore) QueryCandidates(_ context.Context, notebookID, ownerID string) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQueryNotebook = notebookID
	s.lastQueryOwner = ownerID

	vectors := make(map[string][]float32, len(s.embeddings))
	for _, e := range s.embeddings {
		vectors[e.ChunkID] = e.Vector
	}

	var out []Candidate
	for _, c := range s.chunks {
		if c.NotebookID != notebookID || c.OwnerID != ownerID {
			continue
		}
		vec, ok := vectors[c.ChunkID]
		if !ok {
			continue
		}
		out = append(out, Candidate{Chunk: c, Vector: vec})
	}
	return out, nil
}

func (s *memVectorStore) chunksForSource(sourceID string) []models.SourceChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SourceChunk
	for _, c := range s.chunks {
		if c.SourceID == sourceID {
			out = append(out, c)
		}
	}
	return out
}

func (s *memVectorStore) embeddingsForSource(sourceID string) []models.ChunkEmbedding {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChunkEmbedding
	for _, e := range s.embeddings {
		if e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	return out
}

// stubEmbedder returns deterministic 3-dimensional vectors and counts
// calls so tests can assert nothing was embedded.
type stubEmbedder struct {
	mu        sync.Mutex
	calls     int
	fail      bool
	queryVec  []float32
	chunkVecs map[string][]float32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		queryVec:  []float32{1, 0, 0},
		chunkVecs: make(map[string][]float32),
	}
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text}, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string, _ int) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return nil, fmt.Errorf("%w: stub backend down", ErrModelUnavailable)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := e.chunkVecs[text]; ok {
			out[i] = vec
		} else {
			out[i] = e.queryVec
		}
	}
	return out, nil
}

func (e *stubEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// noopLocker satisfies SourceLocker without any real locking.
type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// recordingLocker tracks acquisitions and releases per source and
// refuses a second acquisition while the first is still held.
type recordingLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	released []string
	fail     bool
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{held: make(map[string]bool)}
}

func (l *recordingLocker) Lock(_ context.Context, sourceID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, fmt.Errorf("%w: lock backend down", ErrStorage)
	}
	if l.held[sourceID] {
		return nil, fmt.Errorf("lock already held for %s", sourceID)
	}
	l.held[sourceID] = true
	l.acquired = append(l.acquired, sourceID)

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[sourceID] = false
		l.released = append(l.released, sourceID)
	}, nil
}
