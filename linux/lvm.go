//go:build linux
// +build linux

package linux

import (
	"fmt"

	"github.com/pkg/errors"
	"machinerun.io/blockstack"
)

func (b *linuxBackend) CreatePV(device string, dataAlignment, metadataSize uint64) error {
	args := []string{"lvm", "pvcreate", "--yes", "--zero=y"}

	if dataAlignment != 0 {
		args = append(args, "--dataalignment="+sizeArg(dataAlignment))
	}

	if metadataSize != 0 {
		args = append(args, "--metadatasize="+sizeArg(metadataSize))
	}

	return b.run("lvm", append(args, device)...)
}

func (b *linuxBackend) RemovePV(device string) error {
	return b.run("lvm", "lvm", "pvremove", "--yes", device)
}

func (b *linuxBackend) CreateVG(name string, extentSize uint64, devices ...string) error {
	args := []string{"lvm", "vgcreate", "--yes", "--zero=y"}

	if extentSize != 0 {
		args = append(args, "--physicalextentsize="+sizeArg(extentSize))
	}

	args = append(args, name)

	return b.run("lvm", append(args, devices...)...)
}

func (b *linuxBackend) VGInfo(name string) (blockstack.VGInfo, error) {
	cmd, err := b.command("lvm", "vgs", "--options=vg_all,pv_count,lv_count",
		"--report-format=json", "--unit=B", name)
	if err != nil {
		return blockstack.VGInfo{}, err
	}

	out, stderr, rc := runCommandWithOutputErrorRc(cmd...)
	if rc != 0 {
		return blockstack.VGInfo{}, cmdError("lvm", cmd, out, stderr, rc)
	}

	vgs, err := parseVgReport(out)
	if err != nil {
		return blockstack.VGInfo{}, errors.Wrapf(err, "failed to parse lvm vgs output for %s", name)
	}

	for _, vgd := range vgs {
		if vgd.Name == name {
			return vgd.toVGInfo(), nil
		}
	}

	return blockstack.VGInfo{}, &blockstack.OpError{
		Category: "lvm",
		Code:     5, //nolint:gomnd
		Msg:      fmt.Sprintf("volume group %s not found", name),
	}
}

func (b *linuxBackend) RemoveVG(name string) error {
	return b.run("lvm", "lvm", "vgremove", "--yes", name)
}

func (b *linuxBackend) CreateLV(vgName, name string, size uint64, layout blockstack.LVLayout) error {
	return b.run("lvm", "lvm", "lvcreate", "--yes", "--zero=y", "--wipesignatures=y",
		"--type="+layout.String(), "--name="+name, "--size="+sizeArg(size), vgName)
}

func (b *linuxBackend) RemoveLV(vgName, name string) error {
	return b.run("lvm", "lvm", "lvremove", "--yes", vgName+"/"+name)
}
