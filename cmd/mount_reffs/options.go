package main

import (
	"fmt"
	"strconv"
	"strings"
)

// mountOptions is the result of parsing a "-o key=value,key2=value2,..."
// string, the conventional mount(8) option syntax (spec §3: "Filesystem-
// wide state: total block budget, total inode budget"). There is no
// ecosystem library in this module's dependency pack for the
// K/M/G/T/P/E size-suffix grammar specifically (only rclone's test file
// for its SizeSuffix type was retrievable, not the implementation), so
// this one small parser is hand-rolled against the standard library
// rather than borrowed.
type mountOptions struct {
	Size    uint64 // bytes
	Inodes  uint64
	Subtype string
}

func defaultMountOptions() mountOptions {
	return mountOptions{
		Size:   1 << 30, // 1 GiB
		Inodes: 1 << 20,
	}
}

// parseMountOptions parses a comma-separated "-o" argument.
func parseMountOptions(s string) (mountOptions, error) {
	opts := defaultMountOptions()
	if s == "" {
		return opts, nil
	}

	for _, kv := range strings.Split(s, ",") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		key := parts[0]
		var val string
		if len(parts) == 2 {
			val = parts[1]
		}

		switch key {
		case "size":
			n, err := parseSizeSuffix(val)
			if err != nil {
				return opts, fmt.Errorf("size: %v", err)
			}
			opts.Size = n
		case "inodes":
			n, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return opts, fmt.Errorf("inodes: %v", err)
			}
			opts.Inodes = n
		case "subtype":
			opts.Subtype = val
		default:
			return opts, fmt.Errorf("unrecognized mount option %q", key)
		}
	}

	return opts, nil
}

// sizeSuffixes maps a trailing unit letter to its power-of-two byte
// count, matching the K/M/G/T/P/E ladder common to mount-option size
// arguments.
var sizeSuffixes = map[byte]uint64{
	'k': 1 << 10, 'K': 1 << 10,
	'm': 1 << 20, 'M': 1 << 20,
	'g': 1 << 30, 'G': 1 << 30,
	't': 1 << 40, 'T': 1 << 40,
	'p': 1 << 50, 'P': 1 << 50,
	'e': 1 << 60, 'E': 1 << 60,
}

func parseSizeSuffix(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	last := s[len(s)-1]
	if mult, ok := sizeSuffixes[last]; ok {
		n, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, err
		}
		return uint64(n * float64(mult)), nil
	}

	return strconv.ParseUint(s, 10, 64)
}
