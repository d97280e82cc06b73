package source

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// tableDigest summarizes the rows of one table. Row order does not affect
// it, so backends without a stable scan order still fingerprint equally.
type tableDigest struct {
	rows uint64
	sum  uint64
	xor  uint64
	buf  []byte
}

// field appends one cell of the current row. A null cell hashes
// differently from an empty string.
func (d *tableDigest) field(v []byte, null bool) {
	if null {
		d.buf = append(d.buf, 0)
		return
	}
	d.buf = append(d.buf, 1)
	d.buf = binary.AppendUvarint(d.buf, uint64(len(v)))
	d.buf = append(d.buf, v...)
}

// endRow folds the current row into the digest
func (d *tableDigest) endRow() {
	d.raw(d.buf)
	d.buf = d.buf[:0]
}

// raw folds one already encoded row into the digest
func (d *tableDigest) raw(row []byte) {
	sum := blake2b.Sum256(row)
	v := binary.LittleEndian.Uint64(sum[:8])
	d.rows++
	d.sum += v
	d.xor ^= v
}

func (d *tableDigest) writeTo(w io.Writer, table, name string) {
	fmt.Fprintf(w, "%s\x00%s\x00%d\x00%016x%016x\x00", table, name, d.rows, d.sum, d.xor)
}
