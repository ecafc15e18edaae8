package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/tenteen/tenteen/internal/logger"
)

func TestSpoolDigestsExactBytes(t *testing.T) {
	payload := []byte("identical bytes always collide")
	sum := sha256.Sum256(payload)
	want := hex.EncodeToString(sum[:])

	first, err := Spool(bytes.NewReader(payload), 1024)
	if err != nil {
		t.Fatalf("spool: %v", err)
	}
	defer first.Close()
	second, err := Spool(bytes.NewReader(append([]byte(nil), payload...)), 1024)
	if err != nil {
		t.Fatalf("spool: %v", err)
	}
	defer second.Close()

	if first.Digest != want || second.Digest != want {
		t.Fatalf("digest mismatch: %s %s want %s", first.Digest, second.Digest, want)
	}
	if first.Size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", first.Size, len(payload))
	}
	f, err := first.Open()
	if err != nil {
		t.Fatalf("open spooled: %v", err)
	}
	got, _ := io.ReadAll(f)
	_ = f.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("spooled content differs")
	}

	digest, err := Digest(bytes.NewReader(payload))
	if err != nil || digest != want {
		t.Fatalf("Digest = %q, %v", digest, err)
	}
}

func TestSpoolCloseRemovesFile(t *testing.T) {
	s, err := Spool(strings.NewReader("abc"), 10)
	if err != nil {
		t.Fatalf("spool: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(s.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("spool file still present: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSpoolRejections(t *testing.T) {
	if _, err := Spool(strings.NewReader("0123456789x"), 10); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := Spool(strings.NewReader("0123456789"), 10); err != nil {
		t.Fatalf("payload at the limit should pass: %v", err)
	}
	if _, err := Spool(strings.NewReader(""), 10); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := Spool(io.MultiReader(strings.NewReader("partial"), failingReader{}), 100); !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestValidateAudio(t *testing.T) {
	cases := []struct {
		name, filename, contentType string
		allowed                     []Format
		want                        Format
		wantErr                     bool
	}{
		{name: "mp3", filename: "Song.MP3", contentType: "audio/mpeg", want: FormatMP3},
		{name: "params", filename: "a.m4a", contentType: "audio/mp4; codecs=mp4a", want: FormatM4A},
		{name: "not audio", filename: "a.mp3", contentType: "video/mp4", wantErr: true},
		{name: "bare audio", filename: "a.mp3", contentType: "audio/", wantErr: true},
		{name: "bad ext", filename: "a.flac", contentType: "audio/flac", wantErr: true},
		{name: "no ext", filename: "track", contentType: "audio/mpeg", wantErr: true},
		{name: "policy excludes", filename: "a.wav", contentType: "audio/wav", allowed: []Format{FormatMP3}, wantErr: true},
		{name: "policy includes", filename: "a.ogg", contentType: "audio/ogg", allowed: []Format{FormatOGG}, want: FormatOGG},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateAudio(tc.filename, tc.contentType, tc.allowed)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidFormat) {
					t.Fatalf("expected ErrInvalidFormat, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %q, %v; want %q", got, err, tc.want)
			}
		})
	}
}

func TestValidateImage(t *testing.T) {
	if ext, err := ValidateImage("cover.JPG", "image/jpeg"); err != nil || ext != "jpg" {
		t.Fatalf("got %q, %v", ext, err)
	}
	if _, err := ValidateImage("cover.jpg", "audio/mpeg"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if _, err := ValidateImage("cover.svg", "image/svg+xml"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestContentTypeTable(t *testing.T) {
	want := map[Format]string{
		FormatMP3: "audio/mpeg",
		FormatM4A: "audio/mp4",
		FormatWAV: "audio/wav",
		FormatAAC: "audio/aac",
		FormatOGG: "audio/ogg",
		"flac":    DefaultContentType,
		"":        DefaultContentType,
	}
	for f, ct := range want {
		if got := f.ContentType(); got != ct {
			t.Fatalf("%q: got %q want %q", f, got, ct)
		}
	}
}

func TestParseRange(t *testing.T) {
	const size = 100
	cases := []struct {
		header string
		want   ByteRange
		err    error
	}{
		{header: "bytes=0-9", want: ByteRange{0, 9}},
		{header: "bytes=10-", want: ByteRange{10, 99}},
		{header: "bytes=99-99", want: ByteRange{99, 99}},
		{header: "bytes=0-99", want: ByteRange{0, 99}},
		{header: "bytes=100-110", err: ErrRangeNotSatisfiable},
		{header: "bytes=100-", err: ErrRangeNotSatisfiable},
		{header: "bytes=50-100", err: ErrRangeNotSatisfiable},
		{header: "bytes=-10", err: ErrRangeMalformed},
		{header: "bytes=9-0", err: ErrRangeMalformed},
		{header: "bytes=0-1,5-6", err: ErrRangeMalformed},
		{header: "items=0-9", err: ErrRangeMalformed},
		{header: "bytes=a-b", err: ErrRangeMalformed},
		{header: "bytes=+1-5", err: ErrRangeMalformed},
		{header: "bytes=", err: ErrRangeMalformed},
	}
	for _, tc := range cases {
		got, err := ParseRange(tc.header, size)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%q: expected %v, got %v", tc.header, tc.err, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %+v, %v; want %+v", tc.header, got, err, tc.want)
		}
	}
}

func TestByteRangeHeaders(t *testing.T) {
	r := ByteRange{Start: 0, End: 9}
	if r.Length() != 10 {
		t.Fatalf("length = %d", r.Length())
	}
	if got := r.ContentRange(42); got != "bytes 0-9/42" {
		t.Fatalf("content range = %q", got)
	}
	if got := UnsatisfiedContentRange(42); got != "bytes */42" {
		t.Fatalf("unsatisfied = %q", got)
	}
}

func TestExtractWAV(t *testing.T) {
	data := wavFile(8000, 16, 1, 16000)
	md := NewExtractor(logger.Discard()).Extract(context.Background(), bytes.NewReader(data), int64(len(data)), FormatWAV)
	if md.Duration < 0.99 || md.Duration > 1.01 {
		t.Fatalf("duration = %v, want ~1s", md.Duration)
	}
	if md.Bitrate == nil || *md.Bitrate != 128000 {
		t.Fatalf("bitrate = %v, want 128000", md.Bitrate)
	}
}

func TestExtractMP3(t *testing.T) {
	// MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, no CRC, no padding: 417-byte frames.
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
	data := bytes.Repeat(frame, 40)
	md := NewExtractor(logger.Discard()).Extract(context.Background(), bytes.NewReader(data), int64(len(data)), FormatMP3)
	if md.Duration <= 0 {
		t.Fatalf("duration = %v, want > 0", md.Duration)
	}
	if md.Bitrate == nil || *md.Bitrate < 100000 || *md.Bitrate > 160000 {
		t.Fatalf("bitrate = %v, want about 128000", md.Bitrate)
	}
}

func TestExtractAAC(t *testing.T) {
	// 125 ADTS frames at 8 kHz, 1024 samples each: 16 s of audio behind an ID3 tag.
	data := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x0a"), make([]byte, 10)...)
	for i := 0; i < 125; i++ {
		data = append(data, adtsFrame(11, 64)...)
	}
	md := NewExtractor(logger.Discard()).Extract(context.Background(), bytes.NewReader(data), int64(len(data)), FormatAAC)
	if md.Duration < 15.99 || md.Duration > 16.01 {
		t.Fatalf("duration = %v, want 16s", md.Duration)
	}
	if md.Bitrate == nil || *md.Bitrate != 4000 {
		t.Fatalf("bitrate = %v, want 4000", md.Bitrate)
	}
}

func TestExtractOggOpus(t *testing.T) {
	head := []byte("OpusHead")
	head = append(head, 1, 2)
	head = binary.LittleEndian.AppendUint16(head, 312)
	head = binary.LittleEndian.AppendUint32(head, 48000)
	head = append(head, 0, 0, 0)

	var data []byte
	data = append(data, oggPage(0x02, 0, 0, head)...)
	data = append(data, oggPage(0x00, 0, 1, []byte("OpusTags\x00\x00\x00\x00\x00\x00\x00\x00"))...)
	data = append(data, oggPage(0x00, 48312, 2, make([]byte, 300))...)
	data = append(data, oggPage(0x04, 96312, 3, make([]byte, 300))...)

	md := NewExtractor(logger.Discard()).Extract(context.Background(), bytes.NewReader(data), int64(len(data)), FormatOGG)
	if md.Duration < 1.99 || md.Duration > 2.01 {
		t.Fatalf("duration = %v, want 2s", md.Duration)
	}
	if md.Bitrate == nil || *md.Bitrate != len(data)*4 {
		t.Fatalf("bitrate = %v, want %d", md.Bitrate, len(data)*4)
	}
}

func TestExtractM4A(t *testing.T) {
	mvhd := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhd[12:], 1000) // timescale
	binary.BigEndian.PutUint32(mvhd[16:], 2000) // duration
	binary.BigEndian.PutUint32(mvhd[20:], 0x00010000)
	binary.BigEndian.PutUint16(mvhd[24:], 0x0100)
	binary.BigEndian.PutUint32(mvhd[96:], 1)

	data := mp4Box("ftyp", []byte("M4A \x00\x00\x00\x00M4A isom"))
	data = append(data, mp4Box("moov", mp4Box("mvhd", mvhd))...)

	md := NewExtractor(logger.Discard()).Extract(context.Background(), bytes.NewReader(data), int64(len(data)), FormatM4A)
	if md.Duration != 2 {
		t.Fatalf("duration = %v, want 2s", md.Duration)
	}
	if md.Bitrate == nil || *md.Bitrate != len(data)*4 {
		t.Fatalf("bitrate = %v, want %d", md.Bitrate, len(data)*4)
	}
}

func TestExtractToleratesGarbage(t *testing.T) {
	e := NewExtractor(logger.Discard())
	inputs := map[Format][]byte{
		FormatMP3: make([]byte, 2048),
		FormatWAV: []byte("RIFF\x10\x00\x00\x00WAVEtruncated"),
		FormatM4A: []byte("hello world, this is not an mp4 container"),
		FormatAAC: []byte{0xFF, 0xF1, 0x50, 0x80},
		FormatOGG: []byte("OggS"),
	}
	for _, data := range [][]byte{
		[]byte("OggS\x00\x02 \x01vorbis truncated identification header"),
		[]byte("OggS\x00\x02 OpusHead truncated"),
	} {
		md := e.Extract(context.Background(), bytes.NewReader(data), int64(len(data)), FormatOGG)
		if md.Duration != 0 || md.Bitrate != nil {
			t.Fatalf("%q: expected zero metadata, got %+v", data, md)
		}
	}
	for f, data := range inputs {
		md := e.Extract(context.Background(), bytes.NewReader(data), int64(len(data)), f)
		if md.Duration != 0 || md.Bitrate != nil {
			t.Fatalf("%s: expected zero metadata, got %+v", f, md)
		}
	}
}

func wavFile(sampleRate, bitDepth, channels int, dataSize int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(channels))
	_ = binary.Write(&buf, le, uint32(sampleRate))
	_ = binary.Write(&buf, le, uint32(sampleRate*channels*bitDepth/8))
	_ = binary.Write(&buf, le, uint16(channels*bitDepth/8))
	_ = binary.Write(&buf, le, uint16(bitDepth))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// adtsFrame builds an MPEG-4 AAC LC mono frame header for sample rate index
// idx followed by zero payload, length bytes in total.
func adtsFrame(idx byte, length int) []byte {
	frame := make([]byte, length)
	frame[0] = 0xFF
	frame[1] = 0xF1
	frame[2] = 0x40 | idx<<2
	frame[3] = 0x40 | byte(length>>11)&0x03
	frame[4] = byte(length >> 3)
	frame[5] = byte(length&0x07)<<5 | 0x1F
	frame[6] = 0xFC
	return frame
}

func oggPage(headerType byte, granule uint64, seq uint32, payload []byte) []byte {
	page := []byte("OggS")
	page = append(page, 0, headerType)
	page = binary.LittleEndian.AppendUint64(page, granule)
	page = binary.LittleEndian.AppendUint32(page, 1)
	page = binary.LittleEndian.AppendUint32(page, seq)
	page = binary.LittleEndian.AppendUint32(page, 0)
	var lacing []byte
	n := len(payload)
	for ; n >= 255; n -= 255 {
		lacing = append(lacing, 255)
	}
	lacing = append(lacing, byte(n))
	page = append(page, byte(len(lacing)))
	page = append(page, lacing...)
	page = append(page, payload...)
	binary.LittleEndian.PutUint32(page[22:], oggCRC(page))
	return page
}

func oggCRC(b []byte) uint32 {
	var crc uint32
	for _, v := range b {
		crc ^= uint32(v) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func mp4Box(typ string, payload []byte) []byte {
	box := binary.BigEndian.AppendUint32(nil, uint32(8+len(payload)))
	box = append(box, typ...)
	return append(box, payload...)
}
