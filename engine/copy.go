package engine

import (
	"bufio"
	"io"

	"pglue/wire"
)

// writeCopyIn drains src (if non-nil) into CopyData messages terminated by
// CopyDone on a clean EOF or CopyFail on a read error, per spec's COPY IN
// plumbing. It is always called from a pipeline's write arm, so its
// output is already correctly ordered relative to Bind/Execute/Query.
func (w *Wire) writeCopyIn(src io.Reader) error {
	if src == nil {
		return nil
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			w.enqueue(wire.CopyData(chunk))
		}
		if err == io.EOF {
			w.enqueue(wire.CopyDone())
			return nil
		}
		if err != nil {
			w.enqueue(wire.CopyFail(err.Error()))
			return nil
		}
	}
}

// copyOutLoop reads CopyData payloads into dst (or discards them if dst is
// nil) until CopyDone or CommandComplete (the walsender/logical-replication
// path, which never sends CopyDone). CommandComplete is pushed back onto
// an internal one-slot buffer so the caller's normal read loop still sees
// it.
func (w *Wire) copyOutLoop(dst io.Writer) error {
	var bw *bufio.Writer
	if dst != nil {
		bw = bufio.NewWriterSize(dst, 32*1024)
	}
	for {
		m, err := w.nextMessage()
		if err != nil {
			return err
		}
		switch m.typ {
		case wire.TagCopyData:
			if bw != nil {
				if _, err := bw.Write(m.body); err != nil {
					return err
				}
			}
		case wire.TagCopyDone:
			if bw != nil {
				return bw.Flush()
			}
			return nil
		case wire.TagCommandComplete:
			w.pushback(m)
			if bw != nil {
				return bw.Flush()
			}
			return nil
		case wire.TagErrorResponse:
			return decodePostgresError(m.body)
		}
	}
}
