//go:build linux
// +build linux

package linux

import (
	"os/exec"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"machinerun.io/blockstack"
)

// ErrMissingTool is returned by New when a required program is not installed.
var ErrMissingTool = errors.New("required tool not found")

// requiredTools are the programs the backend drives, by backend domain.
//nolint:gochecknoglobals
var requiredTools = map[string][]string{
	"fs":     {"wipefs", "blkid", "mkfs.xfs", "e2fsck"},
	"lvm":    {"lvm"},
	"swap":   {"mkswap"},
	"crypto": {"cryptsetup"},
}

type linuxBackend struct {
	tools *toolCache
}

// New returns the linux implementation of blockstack.Backend. It fails if
// any of the programs it needs is missing.
func New() (blockstack.Backend, error) {
	b := &linuxBackend{tools: newToolCache()}

	for domain, names := range requiredTools {
		for _, name := range names {
			if _, err := b.tools.path(name); err != nil {
				return nil, errors.Wrapf(err, "%s plugin", domain)
			}
		}
	}

	return b, nil
}

// toolCache remembers where programs were found on PATH.
type toolCache struct {
	cache *cache.Cache
}

func newToolCache() *toolCache {
	const longTime = 5 * time.Minute

	return &toolCache{cache: cache.New(longTime, longTime)}
}

func (tc *toolCache) path(name string) (string, error) {
	if cached, found := tc.cache.Get(name); found {
		return cached.(string), nil
	}

	p, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(ErrMissingTool, "%s: %v", name, err)
	}

	tc.cache.Set(name, p, cache.DefaultExpiration)

	return p, nil
}

// command returns args with the program in args[0] resolved to a full path.
func (b *linuxBackend) command(args ...string) ([]string, error) {
	p, err := b.tools.path(args[0])
	if err != nil {
		return nil, err
	}

	return append([]string{p}, args[1:]...), nil
}

func (b *linuxBackend) run(category string, args ...string) error {
	cmd, err := b.command(args...)
	if err != nil {
		return err
	}

	return runCommand(category, cmd...)
}

func (b *linuxBackend) runStdin(category, input string, args ...string) error {
	cmd, err := b.command(args...)
	if err != nil {
		return err
	}

	return runCommandStdin(category, input, cmd...)
}
