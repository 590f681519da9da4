package encoding

import (
	"bytes"
	"log/slog"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/devmine/internal/database"
)

// BufferPool manages a pool of reusable encode buffers
type BufferPool struct {
	pool chan *bytes.Buffer
	size int
}

// NewBufferPool creates a new buffer pool with specified size
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = 10
	}

	pool := make(chan *bytes.Buffer, size)
	for i := 0; i < size; i++ {
		pool <- new(bytes.Buffer)
	}

	return &BufferPool{pool: pool, size: size}
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() *bytes.Buffer {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		slog.Debug("Buffer pool exhausted, allocating buffer")
		return new(bytes.Buffer)
	}
}

// Put resets a buffer and returns it to the pool
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	select {
	case bp.pool <- buf:
	default:
		slog.Debug("Buffer pool full, discarding buffer")
	}
}

// RowEncoder turns database rows into JSON documents
type RowEncoder struct {
	buffers  *BufferPool
	encoded  int64
	failures int64
}

// NewRowEncoder creates a row encoder backed by a buffer pool
func NewRowEncoder(poolSize int) *RowEncoder {
	return &RowEncoder{buffers: NewBufferPool(poolSize)}
}

// Marshal encodes v without the trailing newline json.Encoder adds
func (e *RowEncoder) Marshal(v interface{}) ([]byte, error) {
	buf := e.buffers.Get()
	defer e.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		atomic.AddInt64(&e.failures, 1)
		return nil, err
	}
	atomic.AddInt64(&e.encoded, 1)

	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Unmarshal decodes data into v
func (e *RowEncoder) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// scoreRecord is the wire shape of a score row
type scoreRecord struct {
	ID     int64   `json:"id"`
	ULogin string  `json:"ulogin"`
	DID    int64   `json:"did"`
	FName  string  `json:"fname"`
	Score  float64 `json:"score"`
}

func recordOf(s database.Score) scoreRecord {
	return scoreRecord{
		ID:     s.ID,
		ULogin: s.ULogin,
		DID:    s.DID,
		FName:  s.FName,
		Score:  s.Score,
	}
}

// EncodeScores encodes rows as a JSON array; no rows encode as []
func (e *RowEncoder) EncodeScores(scores []database.Score) ([]byte, error) {
	records := make([]scoreRecord, len(scores))
	for i, s := range scores {
		records[i] = recordOf(s)
	}
	return e.Marshal(records)
}

// EncodeScore encodes one row as a JSON object; nil encodes as {}
func (e *RowEncoder) EncodeScore(score *database.Score) ([]byte, error) {
	if score == nil {
		return e.Marshal(struct{}{})
	}
	return e.Marshal(recordOf(*score))
}

// GetStats returns encoder statistics
func (e *RowEncoder) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"buffer_pool_size": e.buffers.size,
		"buffers_idle":     len(e.buffers.pool),
		"encoded":          atomic.LoadInt64(&e.encoded),
		"failures":         atomic.LoadInt64(&e.failures),
	}
}
