// Package geotifftest encodes small float32 GeoTIFF grids for tests.
package geotifftest

import (
	"bytes"
	"compress/lzw"
	"encoding/binary"
	"math"
	"slices"
	"strconv"
)

// TIFF field types.
const (
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// Options describe a grid. If TileWidth and TileLength are zero the grid is
// written in strips of RowsPerStrip rows.
//
// compress/lzw widens its codes one code later than TIFF readers expect, so
// when LZW is set each tile or strip must be small enough, at most a few
// hundred bytes, for all codes to fit in nine bits.
type Options struct {
	Width        int
	Length       int
	TileWidth    int
	TileLength   int
	RowsPerStrip int
	LZW          bool
	PixelScale   [3]float64
	Tiepoint     [6]float64
	RasterType   int // 1 is PixelIsArea, 2 is PixelIsPoint.
	GeodeticCRS  int
	NoData       string // Omitted if empty.
	Sample       func(col, row int) float32
}

type entry struct {
	tag       uint16
	fieldType uint16
	count     uint32
	value     []byte
}

// Encode returns the GeoTIFF described by o.
func Encode(o Options) []byte {
	noData := float32(0)
	if o.NoData != "" {
		value, err := strconv.ParseFloat(o.NoData, 32)
		if err != nil {
			panic(err)
		}
		noData = float32(value)
	}

	// Chunks are tiles or strips.
	var chunks [][]byte
	var chunkWidth, chunkLength int
	tiled := o.TileWidth != 0 && o.TileLength != 0
	if tiled {
		chunkWidth, chunkLength = o.TileWidth, o.TileLength
		for r := 0; r < o.Length; r += o.TileLength {
			for c := 0; c < o.Width; c += o.TileWidth {
				chunks = append(chunks, o.encodeChunk(c, r, o.TileWidth, o.TileLength, noData))
			}
		}
	} else {
		chunkWidth, chunkLength = o.Width, o.RowsPerStrip
		if chunkLength == 0 {
			chunkLength = o.Length
		}
		for r := 0; r < o.Length; r += chunkLength {
			rows := min(chunkLength, o.Length-r)
			chunks = append(chunks, o.encodeChunk(0, r, chunkWidth, rows, noData))
		}
	}

	var offsets, byteCounts []uint32
	offset := uint32(8)
	for _, chunk := range chunks {
		offsets = append(offsets, offset)
		byteCounts = append(byteCounts, uint32(len(chunk)))
		offset += uint32(len(chunk))
	}

	compression := uint16(1)
	if o.LZW {
		compression = 5
	}
	rasterType := o.RasterType
	if rasterType == 0 {
		rasterType = 1
	}
	citation := "WGS 84|"

	entries := []entry{
		shorts(256, uint16(o.Width)),
		shorts(257, uint16(o.Length)),
		shorts(258, 32),
		shorts(259, compression),
		shorts(262, 1),
		shorts(277, 1),
		shorts(284, 1),
		shorts(317, 1),
		shorts(339, 3),
		doubles(33550, o.PixelScale[:]...),
		doubles(33922, o.Tiepoint[:]...),
		shorts(34735,
			1, 1, 0, 4,
			1024, 0, 1, 2,
			1025, 0, 1, uint16(rasterType),
			2048, 0, 1, uint16(o.GeodeticCRS),
			2049, 34737, uint16(len(citation)), 0,
		),
		doubles(34736, 0.0174532925199433),
		ascii(34737, citation),
	}
	if tiled {
		entries = append(entries,
			shorts(322, uint16(chunkWidth)),
			shorts(323, uint16(chunkLength)),
			longs(324, offsets...),
			longs(325, byteCounts...),
		)
	} else {
		entries = append(entries,
			longs(273, offsets...),
			shorts(278, uint16(chunkLength)),
			longs(279, byteCounts...),
		)
	}
	if o.NoData != "" {
		entries = append(entries, ascii(42113, o.NoData))
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return int(a.tag) - int(b.tag)
	})

	// The IFD must begin on a word boundary.
	padding := offset % 2
	ifdOffset := offset + padding
	valuesOffset := ifdOffset + 2 + 12*uint32(len(entries)) + 4

	buf := &bytes.Buffer{}
	buf.WriteString("II")
	write(buf, uint16(42))
	write(buf, ifdOffset)
	for _, chunk := range chunks {
		buf.Write(chunk)
	}
	if padding != 0 {
		buf.WriteByte(0)
	}

	values := &bytes.Buffer{}
	write(buf, uint16(len(entries)))
	for _, e := range entries {
		write(buf, e.tag)
		write(buf, e.fieldType)
		write(buf, e.count)
		if len(e.value) <= 4 {
			var inline [4]byte
			copy(inline[:], e.value)
			buf.Write(inline[:])
			continue
		}
		write(buf, valuesOffset+uint32(values.Len()))
		values.Write(e.value)
		if values.Len()%2 != 0 {
			values.WriteByte(0)
		}
	}
	write(buf, uint32(0))
	buf.Write(values.Bytes())
	return buf.Bytes()
}

// encodeChunk encodes the width x length samples with top left corner (c0,
// r0). Samples outside the image are noData.
func (o *Options) encodeChunk(c0, r0, width, length int, noData float32) []byte {
	raw := make([]byte, 0, 4*width*length)
	for r := r0; r < r0+length; r++ {
		for c := c0; c < c0+width; c++ {
			sample := noData
			if c < o.Width && r < o.Length {
				sample = o.Sample(c, r)
			}
			raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(sample))
		}
	}
	if !o.LZW {
		return raw
	}
	compressed := &bytes.Buffer{}
	w := lzw.NewWriter(compressed, lzw.MSB, 8)
	if _, err := w.Write(raw); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return compressed.Bytes()
}

func shorts(tag uint16, values ...uint16) entry {
	var value []byte
	for _, v := range values {
		value = binary.LittleEndian.AppendUint16(value, v)
	}
	return entry{tag: tag, fieldType: typeShort, count: uint32(len(values)), value: value}
}

func longs(tag uint16, values ...uint32) entry {
	var value []byte
	for _, v := range values {
		value = binary.LittleEndian.AppendUint32(value, v)
	}
	return entry{tag: tag, fieldType: typeLong, count: uint32(len(values)), value: value}
}

func doubles(tag uint16, values ...float64) entry {
	var value []byte
	for _, v := range values {
		value = binary.LittleEndian.AppendUint64(value, math.Float64bits(v))
	}
	return entry{tag: tag, fieldType: typeDouble, count: uint32(len(values)), value: value}
}

func ascii(tag uint16, s string) entry {
	value := append([]byte(s), 0)
	return entry{tag: tag, fieldType: typeASCII, count: uint32(len(value)), value: value}
}

func write(buf *bytes.Buffer, value any) {
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		panic(err)
	}
}
