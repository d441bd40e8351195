package cmd

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const unknownModel = "Unknown Model"

// virtualFilesystems lists filesystem types that never sit on a physical
// disk. Mounts of these types are excluded from discovery.
var virtualFilesystems = map[string]bool{
	"tmpfs":       true,
	"devtmpfs":    true,
	"overlay":     true,
	"squashfs":    true,
	"proc":        true,
	"sysfs":       true,
	"cgroup":      true,
	"cgroup2":     true,
	"pstore":      true,
	"aufs":        true,
	"ramfs":       true,
	"devpts":      true,
	"debugfs":     true,
	"securityfs":  true,
	"tracefs":     true,
	"bpf":         true,
	"mqueue":      true,
	"hugetlbfs":   true,
	"configfs":    true,
	"fusectl":     true,
	"autofs":      true,
	"binfmt_misc": true,
	"efivarfs":    true,
	"rpc_pipefs":  true,
	"nsfs":        true,
}

// mountRecord describes one discovered filesystem mount and the physical
// device behind it.
type mountRecord struct {
	MountPath   string `json:"mount_path"`
	Device      string `json:"device"`
	BackingDisk string `json:"backing_disk"`
	FSType      string `json:"filesystem_type"`
	Model       string `json:"model"`
}

// procMountsPath is a variable so tests can point discovery at a fixture.
var procMountsPath = "/proc/self/mounts"

// listRealMounts enumerates mounted filesystems backed by real block devices,
// preserving discovery order. Virtual filesystem types and loop devices are
// filtered out; no further dedup is applied.
func listRealMounts() ([]mountRecord, error) {
	data, err := os.ReadFile(procMountsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", procMountsPath)
	}
	return parseProcMounts(string(data)), nil
}

// parseProcMounts filters /proc/self/mounts content down to real mounts.
// Format per line: device mountpoint fstype options dump pass.
func parseProcMounts(data string) []mountRecord {
	var mounts []mountRecord
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		device, mountPath, fsType := fields[0], fields[1], fields[2]

		if virtualFilesystems[fsType] {
			continue
		}
		if !strings.HasPrefix(device, "/dev/") {
			continue
		}
		if strings.HasPrefix(device, "/dev/loop") {
			continue
		}

		mounts = append(mounts, mountRecord{
			MountPath:   unescapeMountPath(mountPath),
			Device:      device,
			BackingDisk: device,
			FSType:      fsType,
			Model:       unknownModel,
		})
	}
	return mounts
}

// unescapeMountPath decodes the octal escapes the kernel uses for whitespace
// in mount paths.
func unescapeMountPath(path string) string {
	replacer := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return replacer.Replace(path)
}

// lsblk -J structures, limited to the columns resolveBacking asks for.
type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	PKName   *string       `json:"pkname"`
	Model    *string       `json:"model"`
	Children []lsblkDevice `json:"children"`
}

// resolveBacking fills in the backing whole-disk and model string for each
// mount from a single lsblk call. Missing information degrades to
// placeholders rather than failing discovery.
func resolveBacking(ctx context.Context, r runner, mounts []mountRecord) {
	stdout, stderr, err := r.run(ctx, "lsblk", "-J", "-p", "-o", "NAME,TYPE,PKNAME,MODEL")
	if err != nil {
		log.WithError(err).Warn("lsblk failed, reporting devices without model info")
		log.Debugf("lsblk stderr: %s", snippet(stderr))
		return
	}

	var out lsblkOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		log.WithError(err).Warn("could not parse lsblk JSON output")
		return
	}

	index := make(map[string]lsblkDevice)
	indexDevices(out.BlockDevices, index)

	for i := range mounts {
		mounts[i].BackingDisk, mounts[i].Model = backingFor(mounts[i].Device, index)
	}
}

func indexDevices(devices []lsblkDevice, index map[string]lsblkDevice) {
	for _, dev := range devices {
		index[dev.Name] = dev
		indexDevices(dev.Children, index)
	}
}

// backingFor climbs from a device to its whole-disk parent (or stays put if
// the device already is one) and returns the disk path plus its model string.
func backingFor(device string, index map[string]lsblkDevice) (string, string) {
	dev, ok := index[device]
	if !ok {
		return device, unknownModel
	}
	for dev.Type != "disk" && dev.PKName != nil && *dev.PKName != "" {
		parent, ok := index[*dev.PKName]
		if !ok {
			break
		}
		dev = parent
	}

	model := unknownModel
	if dev.Model != nil && strings.TrimSpace(*dev.Model) != "" {
		model = strings.TrimSpace(*dev.Model)
	}
	return dev.Name, model
}

// mountForPath finds the mount record whose path is the longest prefix of
// dir, so a user-specified target directory inherits its mount's device and
// model. Falls back to a placeholder record when nothing matches.
func mountForPath(dir string, mounts []mountRecord) mountRecord {
	best := mountRecord{
		MountPath:   dir,
		Device:      "unknown",
		BackingDisk: "unknown",
		Model:       unknownModel,
	}
	bestLen := -1
	for _, m := range mounts {
		if !pathHasPrefix(dir, m.MountPath) {
			continue
		}
		if len(m.MountPath) > bestLen {
			best = m
			best.MountPath = dir
			bestLen = len(m.MountPath)
		}
	}
	return best
}

func pathHasPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
