// Package codec implements the Firehose wire codec: XML commands and raw
// binary payloads multiplexed over a single serial stream (spec §4.3).
package codec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edlflash/edlctl/internal/logger"
	"github.com/edlflash/edlctl/pkg/edlerr"
)

// Reader is the minimal transport capability the codec needs.
type Reader interface {
	ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error)
	WriteAll(ctx context.Context, data []byte) error
}

// Outcome classifies a completed exchange's terminal response (spec §4.3).
type Outcome int

const (
	Ok Outcome = iota
	DeviceRejected
)

// Response is the parsed result of ReceiveUntilTerminal: the terminal
// ACK/NAK outcome, any rejection message, and the accumulated <log> lines
// surfaced along the way.
type Response struct {
	Outcome  Outcome
	Message  string
	LogLines []string
	Raw      string
}

// Codec frames outgoing XML/binary and parses incoming XML responses. It
// holds no protocol state beyond its read timeout — Client owns the command
// vocabulary.
type Codec struct {
	io          Reader
	readTimeout time.Duration
}

func New(io Reader, readTimeout time.Duration) *Codec {
	return &Codec{io: io, readTimeout: readTimeout}
}

// SendXML wraps a single command in the Firehose XML envelope and writes
// it. It does not wait for a response (spec §4.3).
func (c *Codec) SendXML(ctx context.Context, command string) error {
	envelope := fmt.Sprintf("<?xml version=\"1.0\" ?><data>%s</data>", command)
	return c.io.WriteAll(ctx, []byte(envelope))
}

// SendBytes writes a binary payload verbatim. Callers are responsible for
// chunking to max_payload_size.
func (c *Codec) SendBytes(ctx context.Context, data []byte) error {
	return c.io.WriteAll(ctx, data)
}

// ReceiveUntilTerminal reads chunks off the wire, accumulating <log> lines
// and scanning for a terminal <response .../> element, until one is found
// or the timeout elapses (spec §4.3). Parsing is tolerant substring
// matching: devices emit non-well-formed XML fragments, so this never
// attempts to fully parse the document.
func (c *Codec) ReceiveUntilTerminal(ctx context.Context) (Response, error) {
	var accumulated strings.Builder
	const readChunk = 512

	for {
		chunk, err := c.io.ReadExact(ctx, readChunk, c.readTimeout)
		if err != nil {
			if edlerr.IsCancelled(err) {
				return Response{}, err
			}
			if len(accumulated.String()) == 0 {
				return Response{}, edlerr.Timeout("firehose.codec.ReceiveUntilTerminal")
			}
			// A short final read (device closed the write side after the
			// terminal element) still counts if we already saw <response.
			break
		}
		accumulated.Write(chunk)

		if resp, ok := parseTerminal(accumulated.String()); ok {
			for _, line := range resp.LogLines {
				logger.InfoCtx(ctx, "firehose log", "message", line)
			}
			return resp, nil
		}
	}

	resp, ok := parseTerminal(accumulated.String())
	if !ok {
		return Response{}, edlerr.Timeout("firehose.codec.ReceiveUntilTerminal")
	}
	return resp, nil
}

// parseTerminal scans raw for <log value="..."/> and a terminal
// <response value="ACK|NAK" .../> substring. It never requires the
// document to be well-formed.
func parseTerminal(raw string) (Response, bool) {
	resp := Response{Raw: raw}
	resp.LogLines = extractAttr(raw, "<log", "value")

	respTags := findTags(raw, "<response")
	if len(respTags) == 0 {
		return resp, false
	}
	last := respTags[len(respTags)-1]
	value := attrValue(last, "value")
	switch strings.ToUpper(value) {
	case "ACK":
		resp.Outcome = Ok
	case "NAK":
		resp.Outcome = DeviceRejected
		resp.Message = "device rejected command"
	default:
		return resp, false
	}
	return resp, true
}

// findTags returns every substring starting at prefix and ending at the
// next "/>" or ">", tolerating truncated/malformed XML.
func findTags(raw, prefix string) []string {
	var tags []string
	idx := 0
	for {
		start := strings.Index(raw[idx:], prefix)
		if start == -1 {
			break
		}
		start += idx
		end := strings.IndexAny(raw[start:], ">")
		if end == -1 {
			// Truncated fragment with no closing bracket yet — still
			// usable for attribute extraction (spec §4.3: lenient
			// substring parsing).
			tags = append(tags, raw[start:])
			break
		}
		tags = append(tags, raw[start:start+end+1])
		idx = start + end + 1
	}
	return tags
}

// extractAttr returns the "value" attribute of every tag matching prefix.
func extractAttr(raw, prefix, attr string) []string {
	var values []string
	for _, tag := range findTags(raw, prefix) {
		if v := attrValue(tag, attr); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// attrValue extracts attr="..." from a single tag substring.
func attrValue(tag, attr string) string {
	needle := attr + "=\""
	idx := strings.Index(tag, needle)
	if idx == -1 {
		return ""
	}
	rest := tag[idx+len(needle):]
	end := strings.IndexByte(rest, '"')
	if end == -1 {
		return ""
	}
	return rest[:end]
}
