package voice

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	oggPageHeaderLen = 27
	oggMaxSegment    = 255
)

var oggCapturePattern = [4]byte{'O', 'g', 'g', 'S'}

// ErrBadOggPage is returned when the stream is not Ogg framed.
var ErrBadOggPage = errors.New("voice: invalid ogg page")

// OggReader splits an Ogg stream into the packets it carries. Packets may
// span several segments and several pages. Only single logical streams are
// supported, which is what ffmpeg emits for one audio track.
type OggReader struct {
	r       *bufio.Reader
	header  [oggPageHeaderLen]byte
	partial []byte
	pending [][]byte
}

func NewOggReader(r io.Reader) *OggReader {
	return &OggReader{r: bufio.NewReaderSize(r, 64<<10)}
}

// NextPacket returns the next complete packet, or io.EOF once the stream
// ends cleanly. A stream that ends mid-packet yields io.ErrUnexpectedEOF.
func (o *OggReader) NextPacket() ([]byte, error) {
	for len(o.pending) == 0 {
		if err := o.readPage(); err != nil {
			if err == io.EOF && len(o.partial) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	pkt := o.pending[0]
	o.pending = o.pending[1:]
	return pkt, nil
}

func (o *OggReader) readPage() error {
	if _, err := io.ReadFull(o.r, o.header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: truncated header", ErrBadOggPage)
		}
		return err
	}
	if [4]byte(o.header[0:4]) != oggCapturePattern {
		return fmt.Errorf("%w: bad capture pattern %q", ErrBadOggPage, o.header[0:4])
	}
	if o.header[4] != 0 {
		return fmt.Errorf("%w: unsupported version %d", ErrBadOggPage, o.header[4])
	}

	nsegs := int(o.header[26])
	lacing := make([]byte, nsegs)
	if _, err := io.ReadFull(o.r, lacing); err != nil {
		return fmt.Errorf("%w: truncated segment table", ErrBadOggPage)
	}

	size := 0
	for _, l := range lacing {
		size += int(l)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(o.r, body); err != nil {
		return fmt.Errorf("%w: truncated page body", ErrBadOggPage)
	}

	// continuation flag without a partial packet means we joined mid-stream
	if o.header[5]&0x01 == 0 {
		o.partial = o.partial[:0]
	}

	off := 0
	for _, l := range lacing {
		o.partial = append(o.partial, body[off:off+int(l)]...)
		off += int(l)
		if l < oggMaxSegment {
			pkt := make([]byte, len(o.partial))
			copy(pkt, o.partial)
			o.pending = append(o.pending, pkt)
			o.partial = o.partial[:0]
		}
	}
	return nil
}
