package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/abema/go-mp4"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/tcolgate/mp3"
)

// Metadata is the technical metadata recovered from an audio container.
type Metadata struct {
	Duration float64 `json:"duration"`
	Bitrate  *int    `json:"bitrate,omitempty"`
}

type measureFunc func(r io.ReadSeeker, size int64) (time.Duration, int, error)

// Extractor recovers duration and bitrate. Parse failures are never fatal:
// they yield zero duration and no bitrate.
type Extractor struct {
	logger *slog.Logger
	measures map[Format]measureFunc
}

// NewExtractor creates an extractor with a reader for every supported format.
func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		logger: log.With(slog.String("component", "metadata")),
		measures: map[Format]measureFunc{
			FormatMP3: measureMP3,
			FormatWAV: measureWAV,
			FormatM4A: measureM4A,
			FormatAAC: measureAAC,
			FormatOGG: measureOGG,
		},
	}
}

// Extract reads r from the beginning. It never returns an error.
func (e *Extractor) Extract(ctx context.Context, r io.ReadSeeker, size int64, format Format) Metadata {
	measure, ok := e.measures[format]
	if !ok || r == nil || ctx.Err() != nil {
		return Metadata{}
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		e.logger.Debug("metadata seek failed", slog.String("format", string(format)), slog.Any("error", err))
		return Metadata{}
	}
	duration, bitrate, err := safeMeasure(measure, r, size)
	if err != nil {
		e.logger.Debug("metadata extraction failed", slog.String("format", string(format)), slog.Any("error", err))
		return Metadata{}
	}
	md := Metadata{Duration: math.Max(0, duration.Seconds())}
	if bitrate > 0 {
		md.Bitrate = &bitrate
	}
	return md
}

func safeMeasure(measure measureFunc, r io.ReadSeeker, size int64) (d time.Duration, bitrate int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d, bitrate, err = 0, 0, fmt.Errorf("parser panic: %v", rec)
		}
	}()
	return measure(r, size)
}

func measureMP3(r io.ReadSeeker, _ int64) (time.Duration, int, error) {
	dec := mp3.NewDecoder(r)
	var (
		frame    mp3.Frame
		skipped  int
		total    time.Duration
		bits     int64
		frames   int
		firstErr error
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				firstErr = err
			}
			break
		}
		frames++
		total += frame.Duration()
		bits += int64(frame.Size()) * 8
	}
	if frames == 0 {
		if firstErr == nil {
			firstErr = errors.New("no mp3 frames")
		}
		return 0, 0, firstErr
	}
	return total, averageBitrate(bits, total), nil
}

func measureWAV(r io.ReadSeeker, _ int64) (time.Duration, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return 0, 0, errors.New("invalid wav file")
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, 0, err
	}
	return d, int(dec.SampleRate) * int(dec.BitDepth) * int(dec.NumChans), nil
}

func measureM4A(r io.ReadSeeker, size int64) (time.Duration, int, error) {
	info, err := mp4.Probe(r)
	if err != nil {
		return 0, 0, err
	}
	if info.Timescale == 0 {
		return 0, 0, errors.New("mp4 timescale is zero")
	}
	d := time.Duration(float64(info.Duration) / float64(info.Timescale) * float64(time.Second))
	return d, averageBitrate(size*8, d), nil
}

var adtsSampleRates = [...]int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}

// measureAAC walks ADTS frame headers. Each raw data block carries 1024 samples.
func measureAAC(r io.ReadSeeker, _ int64) (time.Duration, int, error) {
	br := bufio.NewReader(r)
	if err := skipID3(br); err != nil {
		return 0, 0, err
	}
	var (
		hdr     [7]byte
		rate    int
		samples int64
		bits    int64
	)
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			break
		}
		if hdr[0] != 0xFF || hdr[1]&0xF6 != 0xF0 {
			break
		}
		idx := int(hdr[2]>>2) & 0x0F
		if idx >= len(adtsSampleRates) {
			break
		}
		length := int64(hdr[3]&0x03)<<11 | int64(hdr[4])<<3 | int64(hdr[5]>>5)
		if length < int64(len(hdr)) {
			break
		}
		if rate == 0 {
			rate = adtsSampleRates[idx]
		}
		samples += int64(hdr[6]&0x03+1) * 1024
		bits += length * 8
		if _, err := br.Discard(int(length) - len(hdr)); err != nil {
			break
		}
	}
	if samples == 0 {
		return 0, 0, errors.New("no adts frames")
	}
	d := time.Duration(float64(samples) / float64(rate) * float64(time.Second))
	return d, averageBitrate(bits, d), nil
}

func skipID3(br *bufio.Reader) error {
	head, err := br.Peek(10)
	if err != nil || !bytes.HasPrefix(head, []byte("ID3")) {
		return nil
	}
	size := int(head[6]&0x7F)<<21 | int(head[7]&0x7F)<<14 | int(head[8]&0x7F)<<7 | int(head[9]&0x7F)
	if _, err := br.Discard(10 + size); err != nil {
		return fmt.Errorf("skip id3 tag: %w", err)
	}
	return nil
}

const opusGranuleRate = 48000

// measureOGG dispatches on the codec named in the first page.
func measureOGG(r io.ReadSeeker, size int64) (time.Duration, int, error) {
	head := make([]byte, 64)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, 0, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	var d time.Duration
	switch head = head[:n]; {
	case bytes.Contains(head, []byte("OpusHead")):
		d, err = opusDuration(r)
	case bytes.Contains(head, []byte("\x01vorbis")):
		d, err = vorbisDuration(r)
	default:
		return 0, 0, errors.New("unsupported ogg codec")
	}
	if err != nil {
		return 0, 0, err
	}
	return d, averageBitrate(size*8, d), nil
}

// opusDuration reads the final granule position, which counts 48 kHz samples
// including the encoder pre-skip.
func opusDuration(r io.Reader) (time.Duration, error) {
	ogg, header, err := oggreader.NewWith(r)
	if err != nil {
		return 0, err
	}
	var last uint64
	for {
		_, page, err := ogg.ParseNextPage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		if page.GranulePosition != math.MaxUint64 {
			last = page.GranulePosition
		}
	}
	if last <= uint64(header.PreSkip) {
		return 0, errors.New("ogg opus stream has no audio")
	}
	samples := last - uint64(header.PreSkip)
	return time.Duration(float64(samples) / opusGranuleRate * float64(time.Second)), nil
}

func vorbisDuration(r io.ReadSeeker) (time.Duration, error) {
	samples, format, err := oggvorbis.GetLength(r)
	if err != nil {
		return 0, err
	}
	if format == nil || format.SampleRate <= 0 || samples <= 0 {
		return 0, errors.New("ogg vorbis stream has no audio")
	}
	return time.Duration(float64(samples) / float64(format.SampleRate) * float64(time.Second)), nil
}

func averageBitrate(bits int64, d time.Duration) int {
	if d <= 0 || bits <= 0 {
		return 0
	}
	return int(math.Round(float64(bits) / d.Seconds()))
}
