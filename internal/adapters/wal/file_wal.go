package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"
)

// record format: [8 bytes id][4 bytes len][4 bytes crc32][len bytes json frame]
const recordHeaderLen = 16

const maxRecordLen = 16 << 20

const (
	logName  = "frames.wal"
	metaName = "frames.meta"
)

// ErrCorrupt is returned when a record checksum does not match its body.
var ErrCorrupt = errors.New("wal: corrupt record")

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// FileWAL is a single-file append-only log of frames. The committed
// watermark lives next to it in a small text file.
type FileWAL struct {
	mu        sync.Mutex
	dir       string
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.WALEntryID
	committed ports.WALEntryID
	sizeBytes int64
}

func NewFileWAL(dir string) (*FileWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &FileWAL{
		dir:      dir,
		path:     filepath.Join(dir, logName),
		metaPath: filepath.Join(dir, metaName),
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	if err := w.bootstrap(); err != nil {
		_ = w.file.Close()
		return nil, err
	}
	return w, nil
}

func (w *FileWAL) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriterSize(f, 1<<20)
	return nil
}

func (w *FileWAL) bootstrap() error {
	if err := w.scanExisting(); err != nil {
		return err
	}
	if err := w.loadCommitted(); err != nil {
		return err
	}
	if w.nextID < w.committed {
		w.nextID = w.committed
	}
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

// scanExisting walks the log, truncating a torn tail left by a crash.
func (w *FileWAL) scanExisting() error {
	rf, err := os.Open(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer rf.Close()

	var (
		offset int64
		lastID ports.WALEntryID
		r      = bufio.NewReader(rf)
	)
	for {
		id, body, err := readRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrCorrupt) {
				break
			}
			return fmt.Errorf("wal scan: %w", err)
		}
		offset += int64(recordHeaderLen + len(body))
		lastID = id
	}

	if err := w.file.Truncate(offset); err != nil {
		return err
	}
	w.sizeBytes = offset
	w.nextID = lastID
	return nil
}

func (w *FileWAL) loadCommitted() error {
	data, err := os.ReadFile(w.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("wal meta parse: %w", err)
	}
	w.committed = ports.WALEntryID(u)
	return nil
}

func (w *FileWAL) Append(f *domain.Frame) (ports.WALEntryID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := json.Marshal(f)
	if err != nil {
		return 0, err
	}

	id := w.nextID + 1
	n, err := writeRecord(w.writer, id, b)
	if err != nil {
		return 0, err
	}

	// group commit: the buffer is flushed on Iterate, Commit and Close
	w.nextID = id
	w.sizeBytes += int64(n)
	return id, nil
}

func (w *FileWAL) Iterate(from ports.WALEntryID, fn func(id ports.WALEntryID, f *domain.Frame) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}

	rf, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	r := bufio.NewReader(rf)
	for {
		id, body, err := readRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("wal iterate: %w", err)
		}
		if id < from {
			continue
		}

		var f domain.Frame
		if err := json.Unmarshal(body, &f); err != nil {
			return fmt.Errorf("wal iterate entry %d: %w", id, err)
		}
		if err := fn(id, &f); err != nil {
			return err
		}
	}
}

func (w *FileWAL) Commit(upto ports.WALEntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if upto > w.committed {
		w.committed = upto
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.persistMetaLocked()
}

// TruncateCommitted rewrites the log keeping only uncommitted records.
func (w *FileWAL) TruncateCommitted() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}

	tmpPath := w.path + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	tw := bufio.NewWriter(tmp)

	src, err := os.Open(w.path)
	if err != nil {
		_ = tmp.Close()
		return err
	}
	var kept int64
	r := bufio.NewReader(src)
	for {
		id, body, rerr := readRecord(r)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			_ = src.Close()
			_ = tmp.Close()
			return fmt.Errorf("wal truncate: %w", rerr)
		}
		if id <= w.committed {
			continue
		}
		n, werr := writeRecord(tw, id, body)
		if werr != nil {
			_ = src.Close()
			_ = tmp.Close()
			return werr
		}
		kept += int64(n)
	}
	_ = src.Close()

	if err := tw.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return err
	}
	if err := w.open(); err != nil {
		return err
	}
	w.sizeBytes = kept
	return nil
}

func (w *FileWAL) Stats() ports.WALStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ports.WALStats{
		OldestUncommitted: w.committed + 1,
		LatestAppended:    w.nextID,
		SizeBytes:         w.sizeBytes,
	}
}

// Close flushes buffered records and releases the file handle.
func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *FileWAL) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", w.committed))
	return os.WriteFile(w.metaPath, data, 0o644)
}

func writeRecord(bw *bufio.Writer, id ports.WALEntryID, body []byte) (int, error) {
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))
	binary.BigEndian.PutUint32(hdr[12:16], crc32.Checksum(body, crcTable))

	if _, err := bw.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := bw.Write(body); err != nil {
		return 0, err
	}
	return len(hdr) + len(body), nil
}

func readRecord(r *bufio.Reader) (ports.WALEntryID, []byte, error) {
	var hdr [recordHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	id := ports.WALEntryID(binary.BigEndian.Uint64(hdr[0:8]))
	length := binary.BigEndian.Uint32(hdr[8:12])
	sum := binary.BigEndian.Uint32(hdr[12:16])
	if length > maxRecordLen {
		return 0, nil, fmt.Errorf("%w: id=%d len=%d", ErrCorrupt, id, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	if crc32.Checksum(body, crcTable) != sum {
		return 0, nil, fmt.Errorf("%w: id=%d", ErrCorrupt, id)
	}
	return id, body, nil
}

var _ ports.WAL = (*FileWAL)(nil)
