package linux

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"machinerun.io/blockstack"
)

func readReportUint64(s string) (uint64, error) {
	// lvm --report-format=json --unit=B puts unit 'B' at end of all sizes.
	s = strings.TrimSuffix(s, "B")
	if s == "" {
		return 0, nil
	}

	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to convert string %s to uint64: %s", s, err)
	}

	return num, nil
}

func readReportInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	return strconv.Atoi(s)
}

type lvmVGData struct {
	Name       string
	Size       uint64
	Free       uint64
	ExtentSize uint64
	PVCount    int
	LVCount    int
}

func (d *lvmVGData) UnmarshalJSON(b []byte) error {
	var m map[string]string
	var err error

	if err = json.Unmarshal(b, &m); err != nil {
		return err
	}

	d.Name = m["vg_name"]

	if d.Size, err = readReportUint64(m["vg_size"]); err != nil {
		return err
	}

	if d.Free, err = readReportUint64(m["vg_free"]); err != nil {
		return err
	}

	if d.ExtentSize, err = readReportUint64(m["vg_extent_size"]); err != nil {
		return err
	}

	if d.PVCount, err = readReportInt(m["pv_count"]); err != nil {
		return err
	}

	if d.LVCount, err = readReportInt(m["lv_count"]); err != nil {
		return err
	}

	return nil
}

func (d *lvmVGData) toVGInfo() blockstack.VGInfo {
	return blockstack.VGInfo{
		Name:       d.Name,
		Size:       d.Size,
		Free:       d.Free,
		ExtentSize: d.ExtentSize,
		PVCount:    d.PVCount,
		LVCount:    d.LVCount,
	}
}

func parseVgReport(report []byte) ([]lvmVGData, error) {
	var d map[string]([]map[string]([]lvmVGData))

	if err := json.Unmarshal(report, &d); err != nil {
		return []lvmVGData{}, err
	}

	if len(d["report"]) == 0 {
		return []lvmVGData{}, fmt.Errorf("lvm report has no entries")
	}

	return d["report"][0]["vg"], nil
}
