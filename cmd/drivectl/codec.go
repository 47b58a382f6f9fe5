package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/taoyao-code/drivelink/internal/protocol/drive"
)

func runEncode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	typ := fs.String("type", "DRIVE", "DRIVE|SLEEP|RESPONSE")
	seq := fs.Uint("seq", 0, "packet counter (0-65535)")
	ack := fs.Bool("ack", false, "set the ack flag")
	body := fs.String("body", "", "comma separated body fields")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seq > 0xFFFF {
		return fmt.Errorf("seq out of range: %d", *seq)
	}
	ct, ok := drive.ParseCommandType(*typ)
	if !ok {
		return fmt.Errorf("unknown type %q", *typ)
	}
	raw, err := drive.Build(ct, uint16(*seq), *ack, *body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hex.EncodeToString(raw))
	return err
}

func runDecode(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	stream := fs.Bool("stream", false, "treat all arguments as one byte stream and resync on garbage")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no hex input")
	}

	if *stream {
		raw, err := decodeHex(strings.Join(fs.Args(), ""))
		if err != nil {
			return err
		}
		d := drive.NewStreamDecoder(0)
		frames, err := d.Feed(raw)
		if err != nil {
			return err
		}
		for _, p := range frames {
			fmt.Fprintln(out, p.String())
		}
		fmt.Fprintf(out, "frames=%d resync_bytes=%d checksum_failures=%d buffered=%d\n",
			len(frames), d.ResyncBytes(), d.ChecksumFailures(), d.Buffered())
		return nil
	}

	for _, arg := range fs.Args() {
		raw, err := decodeHex(arg)
		if err != nil {
			return err
		}
		p, err := drive.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		fmt.Fprintln(out, p.String())
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(s)
	return hex.DecodeString(s)
}
