// Package durability implements the append-only, length-prefixed,
// type-tagged record log. Records are encoded with msgpack for compact
// binary payloads, kept independent of badger's own WAL, because recovery
// needs a specific CommitRecord/StatusRecord replay contract that must
// survive independently of the KV engine's internal log format.
package durability

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
)

// RecordKind distinguishes sequenced records (which receive the next
// sequence number on append) from unsequenced ones (checkpoints and other
// schema-independent notes).
type RecordKind byte

const (
	KindSequenced   RecordKind = 1
	KindUnsequenced RecordKind = 2
)

// TypeTag identifies the payload's logical type so iteration can decode
// without external context.
type TypeTag byte

const (
	TypeCommitRecord TypeTag = 1
	TypeStatusRecord TypeTag = 2
	TypeCheckpoint   TypeTag = 3
)

// Record is one entry in the log as returned by iteration: its sequence
// number (0 for unsequenced records), its kind, its type tag, and its raw
// msgpack-encoded payload.
type Record struct {
	Seq     uint64
	Kind    RecordKind
	Type    TypeTag
	Payload []byte
}

// Log is the append-only record stream. A single log file backs both
// sequenced and unsequenced records; sequence numbers are assigned only to
// sequenced records, from a monotonic counter independent of the store's
// own commit-sequence allocator only in the sense that it is the same
// counter exposed in two places — the store hands out provisional commit
// sequence numbers from this log's counter, so "the next sequence number on
// append" and "the provisional commit sequence number" are identical.
type Log struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	nextSeq atomic.Uint64
}

// Open opens (creating if necessary) the durability log under
// <baseDir>/wal/durability.log
func Open(baseDir string) (*Log, error) {
	dir := filepath.Join(baseDir, "wal")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("durability: mkdir: %w", err)
	}
	path := filepath.Join(dir, "durability.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("durability: open log: %w", err)
	}
	l := &Log{f: f, w: bufio.NewWriter(f)}
	maxSeq, err := l.scanMaxSeq(path)
	if err != nil {
		return nil, err
	}
	l.nextSeq.Store(maxSeq)
	return l, nil
}

func (l *Log) scanMaxSeq(path string) (uint64, error) {
	var maxSeq uint64
	err := IterFrom(path, 0, func(r Record) error {
		if r.Kind == KindSequenced && r.Seq > maxSeq {
			maxSeq = r.Seq
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return maxSeq, nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.f.Close()
}

// AppendSequenced allocates the next sequence number, serializes payload,
// and appends it durably (fsync'd) before returning. It returns the
// assigned sequence number.
func (l *Log) AppendSequenced(typ TypeTag, payload any) (uint64, error) {
	seq := l.nextSeq.Add(1)
	if err := l.append(seq, KindSequenced, typ, payload); err != nil {
		return 0, err
	}
	return seq, nil
}

// AppendUnsequenced appends a metadata record (e.g. a checkpoint) with no
// sequence number.
func (l *Log) AppendUnsequenced(typ TypeTag, payload any) error {
	return l.append(0, KindUnsequenced, typ, payload)
}

func (l *Log) append(seq uint64, kind RecordKind, typ TypeTag, payload any) error {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("durability: marshal: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var header [18]byte
	binary.BigEndian.PutUint64(header[0:8], seq)
	header[8] = byte(kind)
	header[9] = byte(typ)
	binary.BigEndian.PutUint64(header[10:18], uint64(len(body)))

	if _, err := l.w.Write(header[:]); err != nil {
		return fmt.Errorf("durability: write header: %w", err)
	}
	if _, err := l.w.Write(body); err != nil {
		return fmt.Errorf("durability: write body: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("durability: flush: %w", err)
	}
	// The guarantee "for every successfully acknowledged write, a
	// subsequent iter_from(0) yields that record" requires the bytes to
	// survive a process crash, not just a buffered-writer flush.
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("durability: fsync: %w", err)
	}
	return nil
}

const headerLen = 18

// IterFrom iterates records from the log file at path whose sequence number
// is >= from (unsequenced records, seq 0, are always included), calling fn
// in append order. If the file ends mid-record (a partial tail from a
// crashed write), iteration stops there rather than erroring: recovery
// truncates the log to the last fully-written record.
func IterFrom(path string, from uint64, fn func(Record) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("durability: open for iteration: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [headerLen]byte
	for {
		n, err := io.ReadFull(r, header[:])
		if err == io.EOF {
			return nil
		}
		if err == io.ErrUnexpectedEOF || n < headerLen {
			return nil // partial header: crashed mid-write, stop here
		}
		if err != nil {
			return fmt.Errorf("durability: read header: %w", err)
		}

		seq := binary.BigEndian.Uint64(header[0:8])
		kind := RecordKind(header[8])
		typ := TypeTag(header[9])
		bodyLen := binary.BigEndian.Uint64(header[10:18])

		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil // partial body: crashed mid-write, stop here
		}

		if kind == KindSequenced && seq < from {
			continue
		}
		if err := fn(Record{Seq: seq, Kind: kind, Type: typ, Payload: body}); err != nil {
			return err
		}
	}
}

// Truncate rewrites the log file keeping only fully-written records up to
// and including the given byte offset, used by recovery to drop a crashed
// partial tail permanently rather than re-discovering it on every restart.
func Truncate(baseDir string, validByteLen int64) error {
	path := filepath.Join(baseDir, "wal", "durability.log")
	return os.Truncate(path, validByteLen)
}
