package sim

import (
	"io"
	"os"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// LoadHex seeds the flash with an Intel HEX image, as if it had been
// programmed by an earlier session
func LoadHex(f *Flash, r io.Reader) error {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return errors.Wrap(err, "parse intel hex")
	}
	for _, seg := range mem.GetDataSegments() {
		if !f.Load(seg.Address, seg.Data) {
			return errors.Errorf("segment 0x%08X+%d outside flash", seg.Address, len(seg.Data))
		}
	}
	return nil
}

// LoadHexFile is LoadHex on a file path
func LoadHexFile(f *Flash, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open image")
	}
	defer file.Close()
	return errors.Wrapf(LoadHex(f, file), "load %s", path)
}
