package hexdump

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// HexDumpOptions defines options for customizing the hexdump output
type HexDumpOptions struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// StartAddress is printed in the address column for the first byte
	StartAddress uint64

	// AddressWidth is the width of the address column in hex digits
	AddressWidth int

	// Color enables ANSI colors
	Color bool

	AddressColor      coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ZeroColor         coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() HexDumpOptions {
	return HexDumpOptions{
		BytesPerLine:      16,
		AddressWidth:      8,
		Color:             true,
		AddressColor:      coloransi.Cyan,
		HexColor:          coloransi.Green,
		ZeroColor:         coloransi.BrightBlack,
		ASCIIColor:        coloransi.White,
		NonPrintableColor: coloransi.BrightBlack,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options HexDumpOptions) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer.
// Each line looks like
//
//	00401000  4d 5a 90 00 03 00 00 00 | 04 00 00 00 ff ff 00 00  |MZ...... ........|
func DumpToWriter(writer io.Writer, data []byte, options HexDumpOptions) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.AddressWidth <= 0 {
		options.AddressWidth = 8
	}

	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], options.StartAddress+uint64(offset), options)
	}
}

func formatLine(writer io.Writer, data []byte, address uint64, options HexDumpOptions) {
	paint := func(c coloransi.ColorCode, s string) string {
		if !options.Color {
			return s
		}
		return coloransi.Foreground(c, s)
	}

	fmt.Fprint(writer, paint(options.AddressColor, fmt.Sprintf("%0*x", options.AddressWidth, address)), "  ")

	half := options.BytesPerLine / 2
	for i := 0; i < options.BytesPerLine; i++ {
		if i == half && options.BytesPerLine >= 8 {
			fmt.Fprint(writer, "| ")
		}
		if i >= len(data) {
			fmt.Fprint(writer, "   ")
			continue
		}
		color := options.HexColor
		if data[i] == 0 {
			color = options.ZeroColor
		}
		fmt.Fprint(writer, paint(color, fmt.Sprintf("%02x", data[i])), " ")
	}

	var ascii strings.Builder
	for i, b := range data {
		if i == half && options.BytesPerLine >= 8 {
			ascii.WriteByte(' ')
		}
		if b >= 0x20 && b < 0x7F {
			ascii.WriteString(paint(options.ASCIIColor, string(rune(b))))
		} else {
			ascii.WriteString(paint(options.NonPrintableColor, "."))
		}
	}
	fmt.Fprint(writer, " |", ascii.String(), "|\n")
}
