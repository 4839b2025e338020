package vectorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"orion/internal/orierr"
)

// ColumnarStore is the columnar, binary, compressed persistence
// format: one file at `{file_id}_embeddings.h5` per document. No Go
// HDF5 binding exists in the retrieved dependency pack (or is a
// realistic fetchable dependency here), so the on-disk structure is a
// purpose-built binary framing that preserves the format's required
// shape — independently gzip-compressed column blocks, a byte-shuffle
// pre-filter on the embedding matrix, and a per-block checksum — using
// klauspost/compress, already present in the teacher's dependency
// graph, in place of HDF5's native gzip/shuffle/fletcher32 filters.
// The byte layout is documented on Save.
type ColumnarStore struct {
	dir string
}

func NewColumnarStore(dir string) *ColumnarStore {
	return &ColumnarStore{dir: dir}
}

func (s *ColumnarStore) Format() string { return "hdf5" }

func (s *ColumnarStore) path(fileID string) string {
	return filepath.Join(s.dir, fileID+"_embeddings.h5")
}

const columnarMagic = "ORNV"
const columnarVersion = uint32(1)

type columnarHeader struct {
	FileID              string   `json:"file_id"`
	EmbeddingCount      int      `json:"embedding_count"`
	EmbeddingDimension  int      `json:"embedding_dimension"`
	StorageFormat       string   `json:"storage_format"`
	Metadata            Metadata `json:"metadata"`
}

// Save writes embeddings as: magic, version, length-prefixed JSON
// header, then five length-prefixed compressed blocks in fixed order
// (embeddings, texts, filenames, token_counts, embedding_models). The
// whole encode happens into an in-memory buffer first, then the
// buffer is written to a temp file and renamed into place, so readers
// never see a partial file.
func (s *ColumnarStore) Save(fileID string, embeddings []EmbeddedChunk, metadata Metadata) (string, error) {
	n := len(embeddings)
	dim := 0
	if n > 0 {
		dim = len(embeddings[0].Embedding)
	}

	header := columnarHeader{
		FileID:             fileID,
		EmbeddingCount:      n,
		EmbeddingDimension:  dim,
		StorageFormat:       "hdf5",
		Metadata:           metadata,
	}

	var buf bytes.Buffer
	buf.WriteString(columnarMagic)
	_ = binary.Write(&buf, binary.LittleEndian, columnarVersion)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("marshal header: %w: %w", orierr.ErrPersistFailed, err)
	}
	if err := writeLengthPrefixed(&buf, headerJSON); err != nil {
		return "", fmt.Errorf("write header: %w: %w", orierr.ErrPersistFailed, err)
	}

	embeddingsRaw := shuffleEncodeFloat32Matrix(embeddings, dim)
	if err := writeBlock(&buf, embeddingsRaw); err != nil {
		return "", fmt.Errorf("write embeddings block: %w: %w", orierr.ErrPersistFailed, err)
	}

	texts := make([]string, n)
	filenames := make([]string, n)
	models := make([]string, n)
	tokenCounts := make([]int32, n)
	for i, e := range embeddings {
		texts[i] = e.Text
		filenames[i] = e.Filename
		models[i] = e.EmbeddingModel
		tokenCounts[i] = int32(e.TokenCount)
	}

	for _, block := range []struct {
		name string
		raw  []byte
	}{
		{"texts", encodeStrings(texts)},
		{"filenames", encodeStrings(filenames)},
		{"token_counts", encodeInt32s(tokenCounts)},
		{"embedding_models", encodeStrings(models)},
	} {
		if err := writeBlock(&buf, block.raw); err != nil {
			return "", fmt.Errorf("write %s block: %w: %w", block.name, orierr.ErrPersistFailed, err)
		}
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create vector store dir: %w: %w", orierr.ErrPersistFailed, err)
	}

	finalPath := s.path(fileID)
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+fileID+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w: %w", orierr.ErrPersistFailed, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write columnar file: %w: %w", orierr.ErrPersistFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w: %w", orierr.ErrPersistFailed, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename into place: %w: %w", orierr.ErrPersistFailed, err)
	}

	return finalPath, nil
}

func (s *ColumnarStore) Load(fileID string) (*PersistedSet, error) {
	data, err := os.ReadFile(s.path(fileID))
	if err != nil {
		return nil, fmt.Errorf("read columnar file: %w: %w", orierr.ErrPersistFailed, err)
	}
	r := bytes.NewReader(data)

	magic := make([]byte, len(columnarMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != columnarMagic {
		return nil, fmt.Errorf("bad magic: %w", orierr.ErrPersistFailed)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w: %w", orierr.ErrPersistFailed, err)
	}

	headerJSON, err := readLengthPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("read header: %w: %w", orierr.ErrPersistFailed, err)
	}
	var header columnarHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("decode header: %w: %w", orierr.ErrPersistFailed, err)
	}

	embeddingsRaw, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("read embeddings block: %w: %w", orierr.ErrPersistFailed, err)
	}
	embeddings := shuffleDecodeFloat32Matrix(embeddingsRaw, header.EmbeddingCount, header.EmbeddingDimension)

	textsRaw, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("read texts block: %w: %w", orierr.ErrPersistFailed, err)
	}
	texts := decodeStrings(textsRaw, header.EmbeddingCount)

	filenamesRaw, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("read filenames block: %w: %w", orierr.ErrPersistFailed, err)
	}
	filenames := decodeStrings(filenamesRaw, header.EmbeddingCount)

	tokenCountsRaw, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("read token_counts block: %w: %w", orierr.ErrPersistFailed, err)
	}
	tokenCounts := decodeInt32s(tokenCountsRaw, header.EmbeddingCount)

	modelsRaw, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("read embedding_models block: %w: %w", orierr.ErrPersistFailed, err)
	}
	models := decodeStrings(modelsRaw, header.EmbeddingCount)

	chunks := make([]EmbeddedChunk, header.EmbeddingCount)
	for i := range chunks {
		chunks[i] = EmbeddedChunk{
			Filename:       filenames[i],
			Text:           texts[i],
			TokenCount:     int(tokenCounts[i]),
			Embedding:      embeddings[i],
			EmbeddingModel: models[i],
		}
	}

	return &PersistedSet{
		FileID:         header.FileID,
		Embeddings:     chunks,
		Metadata:       header.Metadata,
		EmbeddingCount: header.EmbeddingCount,
		Dimension:      header.EmbeddingDimension,
	}, nil
}

func (s *ColumnarStore) Exists(fileID string) bool {
	_, err := os.Stat(s.path(fileID))
	return err == nil
}

func (s *ColumnarStore) Delete(fileID string) (bool, error) {
	err := os.Remove(s.path(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete columnar file: %w: %w", orierr.ErrPersistFailed, err)
	}
	return true, nil
}

func (s *ColumnarStore) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list vector store dir: %w: %w", orierr.ErrPersistFailed, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, "_embeddings.h5") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, "_embeddings.h5"))
	}
	sort.Strings(ids)
	return ids, nil
}

// writeBlock gzip-compresses raw at the maximum level and writes it
// length-prefixed, followed by a CRC-32 checksum of the *uncompressed*
// bytes (the per-block integrity check standing in for HDF5's
// fletcher32 filter).
func writeBlock(w io.Writer, raw []byte) error {
	var compressed bytes.Buffer
	gz, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := gz.Write(raw); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	if err := writeLengthPrefixed(w, compressed.Bytes()); err != nil {
		return err
	}
	checksum := crc32.ChecksumIEEE(raw)
	return binary.Write(w, binary.LittleEndian, checksum)
}

func readBlock(r io.Reader) ([]byte, error) {
	compressed, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	var wantChecksum uint32
	if err := binary.Read(r, binary.LittleEndian, &wantChecksum); err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}

	if got := crc32.ChecksumIEEE(raw); got != wantChecksum {
		return nil, fmt.Errorf("checksum mismatch: got %x want %x", got, wantChecksum)
	}
	return raw, nil
}

func writeLengthPrefixed(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// shuffleEncodeFloat32Matrix lays out an (N, D) float32 matrix as raw
// little-endian bytes, then applies a byte-shuffle: transposing byte
// position within each 4-byte element across the whole buffer so that
// each of the four byte-planes is contiguous. Floating-point mantissas
// across embedding dimensions tend to share structure byte-for-byte,
// so shuffling improves the gzip ratio, mirroring HDF5's shuffle
// filter applied ahead of the embeddings dataset's gzip compression.
func shuffleEncodeFloat32Matrix(embeddings []EmbeddedChunk, dim int) []byte {
	n := len(embeddings)
	raw := make([]byte, n*dim*4)
	for i, e := range embeddings {
		for j := 0; j < dim && j < len(e.Embedding); j++ {
			binary.LittleEndian.PutUint32(raw[(i*dim+j)*4:], math.Float32bits(e.Embedding[j]))
		}
	}
	return shuffleBytes(raw, 4)
}

func shuffleDecodeFloat32Matrix(shuffled []byte, n, dim int) [][]float32 {
	raw := unshuffleBytes(shuffled, 4)
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			off := (i*dim + j) * 4
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off : off+4]))
		}
		out[i] = vec
	}
	return out
}

func shuffleBytes(data []byte, elemSize int) []byte {
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for plane := 0; plane < elemSize; plane++ {
		for i := 0; i < n; i++ {
			out[plane*n+i] = data[i*elemSize+plane]
		}
	}
	return out
}

func unshuffleBytes(data []byte, elemSize int) []byte {
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for plane := 0; plane < elemSize; plane++ {
		for i := 0; i < n; i++ {
			out[i*elemSize+plane] = data[plane*n+i]
		}
	}
	return out
}

func encodeStrings(values []string) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(v)))
		buf.WriteString(v)
	}
	return buf.Bytes()
}

func decodeStrings(raw []byte, n int) []string {
	out := make([]string, n)
	r := bytes.NewReader(raw)
	for i := 0; i < n; i++ {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			break
		}
		buf := make([]byte, l)
		io.ReadFull(r, buf)
		out[i] = string(buf)
	}
	return out
}

func encodeInt32s(values []int32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func decodeInt32s(raw []byte, n int) []int32 {
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
