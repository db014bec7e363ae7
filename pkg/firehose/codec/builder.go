package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Command builds a single Firehose XML command element with escaped
// attribute values, so callers constructing commands by hand can't forget
// to escape a partition name or OTA-sourced string (spec REDESIGN FLAGS:
// "centralize through a typed builder so attribute escaping cannot be
// forgotten").
type Command struct {
	tag   string
	attrs []attr
}

type attr struct {
	key, value string
}

func NewCommand(tag string) *Command {
	return &Command{tag: tag}
}

func (c *Command) Str(key, value string) *Command {
	c.attrs = append(c.attrs, attr{key, value})
	return c
}

func (c *Command) Int(key string, value int64) *Command {
	return c.Str(key, strconv.FormatInt(value, 10))
}

func (c *Command) Uint(key string, value uint64) *Command {
	return c.Str(key, strconv.FormatUint(value, 10))
}

func (c *Command) Bool(key string, value bool) *Command {
	if value {
		return c.Str(key, "1")
	}
	return c.Str(key, "0")
}

// Sector renders a start-sector value, transmitting negative offsets as
// the literal "NUM_DISK_SECTORS-N" token the device resolves itself
// (spec §4.4 flash_from_source).
func (c *Command) Sector(key string, sector int64) *Command {
	if sector < 0 {
		return c.Str(key, fmt.Sprintf("NUM_DISK_SECTORS%d", sector))
	}
	return c.Int(key, sector)
}

func (c *Command) String() string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(c.tag)
	for _, a := range c.attrs {
		b.WriteByte(' ')
		b.WriteString(a.key)
		b.WriteString("=\"")
		b.WriteString(escapeAttr(a.value))
		b.WriteByte('"')
	}
	b.WriteString(" />")
	return b.String()
}

func escapeAttr(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"\"", "&quot;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
