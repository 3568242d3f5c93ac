package blockstack

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Layout is the fixed naming configuration of the stack.
type Layout struct {
	VGName      string `koanf:"vg_name" json:"vgName"`
	SwapName    string `koanf:"swap_name" json:"swapName"`
	SwapLabel   string `koanf:"swap_label" json:"swapLabel"`
	DataName    string `koanf:"data_name" json:"dataName"`
	DataLabel   string `koanf:"data_label" json:"dataLabel"`
	CryptPrefix string `koanf:"crypt_prefix" json:"cryptPrefix"`
	Passphrase  string `koanf:"passphrase" json:"-"`
	ExtentSize  uint64 `koanf:"extent_size" json:"extentSize"`
	SwapMax     uint64 `koanf:"swap_max" json:"swapMax"`
}

// DefaultLayout returns the layout used when no configuration is given.
func DefaultLayout() Layout {
	return Layout{
		VGName:      "demo_1_libblockdev",
		SwapName:    "swap",
		SwapLabel:   "demoswap",
		DataName:    "data",
		DataLabel:   "demodata",
		CryptPrefix: "test-luks",
		Passphrase:  "passphrase",
		ExtentSize:  8 * Mebibyte,
		SwapMax:     1 * Gibibyte,
	}
}

// LVPath returns the device path of logical volume lvName in vgName.
func LVPath(vgName, lvName string) string {
	return path.Join("/dev", vgName, lvName)
}

// SwapPath is the device path of the swap LV.
func (l Layout) SwapPath() string {
	return LVPath(l.VGName, l.SwapName)
}

// DataPath is the device path of the data LV.
func (l Layout) DataPath() string {
	return LVPath(l.VGName, l.DataName)
}

// CryptName is the device-mapper name of the opened data LV.
func (l Layout) CryptName() string {
	return l.CryptPrefix + "-" + l.DataName
}

// CryptPath is the device path of the opened data LV.
func (l Layout) CryptPath() string {
	return path.Join("/dev/mapper", l.CryptName())
}

// Validate checks that l describes a stack that can be built.
func (l Layout) Validate() error {
	names := []struct{ key, val string }{
		{"vg_name", l.VGName},
		{"swap_name", l.SwapName},
		{"swap_label", l.SwapLabel},
		{"data_name", l.DataName},
		{"data_label", l.DataLabel},
		{"crypt_prefix", l.CryptPrefix},
	}

	for _, n := range names {
		key, val := n.key, n.val
		if val == "" {
			return fmt.Errorf("layout: %s must not be empty", key)
		}

		if strings.ContainsRune(val, '/') {
			return fmt.Errorf("layout: %s '%s' must not contain '/'", key, val)
		}
	}

	if l.SwapName == l.DataName {
		return fmt.Errorf("layout: swap and data volumes share the name '%s'", l.SwapName)
	}

	if l.Passphrase == "" {
		return fmt.Errorf("layout: passphrase must not be empty")
	}

	if l.ExtentSize == 0 || l.ExtentSize%Kibibyte != 0 {
		return fmt.Errorf("layout: extent_size %d is not a positive multiple of 1KiB", l.ExtentSize)
	}

	if l.SwapMax == 0 {
		return fmt.Errorf("layout: swap_max must be greater than zero")
	}

	return nil
}

// LoadLayout reads a yaml or json file and overlays it on DefaultLayout. The
// format is picked from the file extension.
func LoadLayout(fpath string) (Layout, error) {
	parser, err := parserFor(strings.TrimPrefix(filepath.Ext(fpath), "."))
	if err != nil {
		return Layout{}, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(fpath), parser); err != nil {
		return Layout{}, errors.Wrapf(err, "failed to read layout %s", fpath)
	}

	return unmarshalLayout(k)
}

// ParseLayout is LoadLayout for in-memory content in format "yaml" or "json".
func ParseLayout(data []byte, format string) (Layout, error) {
	parser, err := parserFor(format)
	if err != nil {
		return Layout{}, err
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Layout{}, errors.Wrap(err, "failed to parse layout")
	}

	return unmarshalLayout(k)
}

func parserFor(format string) (koanf.Parser, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Parser(), nil
	case "json":
		return json.Parser(), nil
	}

	return nil, fmt.Errorf("unsupported layout format '%s'", format)
}

func unmarshalLayout(k *koanf.Koanf) (Layout, error) {
	layout := DefaultLayout()

	if err := k.UnmarshalWithConf("", &layout, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Layout{}, errors.Wrap(err, "failed to decode layout")
	}

	return layout, layout.Validate()
}
