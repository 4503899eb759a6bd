// Package netio moves frame packets between pipeline hops over a
// length-free framed TCP stream: each serialized packet is preceded by a
// marker, and receivers take the bytes strictly between two consecutive
// markers as one packet.
package netio

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/vision"
)

// Marker separates packets on the wire.
var Marker = []byte("\x00\x00CAESAR\x00\x00")

// wirePkt is the serialized form of a FramePacket; pixels travel as JPEG.
type wirePkt struct {
	CamID   string
	FrameID int
	Img     []byte
	Meta    []packet.Detection
	Acts    []packet.ActMeta
}

// EncodePacket serializes one packet (without the marker).
func EncodePacket(p *packet.FramePacket) ([]byte, error) {
	img, err := vision.EncodeJPEG(p.Image)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(wirePkt{
		CamID:   p.CamID,
		FrameID: p.FrameID,
		Img:     img,
		Meta:    p.Meta,
		Acts:    p.Acts,
	}); err != nil {
		return nil, fmt.Errorf("encode packet: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePacket restores a packet from wire bytes.
func DecodePacket(data []byte) (*packet.FramePacket, error) {
	var w wirePkt
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}
	img, err := vision.DecodeJPEG(w.Img)
	if err != nil {
		return nil, err
	}
	return &packet.FramePacket{
		CamID:   w.CamID,
		FrameID: w.FrameID,
		Image:   img,
		Meta:    w.Meta,
		Acts:    w.Acts,
	}, nil
}

// frameScanner accumulates stream bytes and yields payloads found between
// consecutive markers.
type frameScanner struct {
	buf []byte
}

// push appends stream bytes and returns every complete payload now
// available.
func (s *frameScanner) push(data []byte) [][]byte {
	s.buf = append(s.buf, data...)

	var payloads [][]byte
	for {
		head := bytes.Index(s.buf, Marker)
		if head < 0 {
			// Keep a tail that may hold a marker prefix.
			if keep := len(Marker) - 1; len(s.buf) > keep {
				s.buf = append(s.buf[:0], s.buf[len(s.buf)-keep:]...)
			}
			return payloads
		}
		next := bytes.Index(s.buf[head+len(Marker):], Marker)
		if next < 0 {
			// One marker seen; drop the garbage before it and wait.
			s.buf = append(s.buf[:0], s.buf[head:]...)
			return payloads
		}
		start := head + len(Marker)
		payload := make([]byte, next)
		copy(payload, s.buf[start:start+next])
		payloads = append(payloads, payload)
		s.buf = append(s.buf[:0], s.buf[start+next:]...)
	}
}
