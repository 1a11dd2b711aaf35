package window

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NumPy binary format, version 1.0. Little-endian float32 payload, C order.
// https://numpy.org/doc/stable/reference/generated/numpy.lib.format.html

var npyMagic = []byte("\x93NUMPY\x01\x00")

// headerOverhead is the serialized size of magic, version and header length.
const headerOverhead = len("\x93NUMPY") + 2 + 2

// WriteNPY serializes the tensor as an .npy array.
func WriteNPY(w io.Writer, t *Tensor) error {
	header := npyHeader(t.Shape[:])
	if _, err := w.Write(npyMagic); err != nil {
		return fmt.Errorf("write npy magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return fmt.Errorf("write npy header length: %w", err)
	}
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write npy header: %w", err)
	}
	buf := make([]byte, len(t.Data)*4)
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write npy payload: %w", err)
	}
	return nil
}

// EncodedSize returns the on-disk size of an array with the given shape
// without serializing it.
func EncodedSize(shape []int) int {
	elems := 1
	for _, dim := range shape {
		elems *= dim
	}
	return headerOverhead + len(npyHeader(shape)) + elems*4
}

func npyHeader(shape []int) string {
	dims := make([]string, len(shape))
	for i, dim := range shape {
		dims[i] = strconv.Itoa(dim)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", tuple)
	// Pad so the payload starts on a 64 byte boundary, newline terminated.
	total := headerOverhead + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	return header + "\n"
}

var npyShapeRe = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)

// ReadNPY parses an .npy array of little-endian float32 values. The returned
// shape preserves the array's dimensionality.
func ReadNPY(r io.Reader) ([]float32, []int, error) {
	magic := make([]byte, len(npyMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, nil, fmt.Errorf("read npy magic: %w", err)
	}
	if !bytes.Equal(magic[:6], npyMagic[:6]) {
		return nil, nil, fmt.Errorf("not an npy file")
	}
	var headerLen uint16
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, nil, fmt.Errorf("read npy header length: %w", err)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, fmt.Errorf("read npy header: %w", err)
	}
	text := string(header)
	if !strings.Contains(text, "'<f4'") {
		return nil, nil, fmt.Errorf("unsupported npy dtype in header %q", strings.TrimSpace(text))
	}
	if strings.Contains(text, "'fortran_order': True") {
		return nil, nil, fmt.Errorf("fortran order arrays are not supported")
	}
	match := npyShapeRe.FindStringSubmatch(text)
	if match == nil {
		return nil, nil, fmt.Errorf("npy header missing shape: %q", strings.TrimSpace(text))
	}
	var shape []int
	elems := 1
	for _, part := range strings.Split(match[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil, fmt.Errorf("parse npy shape %q: %w", match[1], err)
		}
		shape = append(shape, dim)
		elems *= dim
	}
	payload := make([]byte, elems*4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, fmt.Errorf("read npy payload: %w", err)
	}
	data := make([]float32, elems)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return data, shape, nil
}
