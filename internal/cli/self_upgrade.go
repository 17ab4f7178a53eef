//go:build !docker

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/spf13/cobra"
)

// releaseRepository is the GitHub owner/name releases are published under.
const releaseRepository = "seuros/kohort"

var errNotReleaseBuild = errors.New("self-upgrade is only available for release builds")

var (
	selfUpgradeRequested bool
	selfUpgradeCheckOnly bool
	selfUpgradeAutoYes   bool
)

func setupSelfUpgrade() {
	flags := RootCmd.PersistentFlags()
	flags.BoolVar(&selfUpgradeRequested, "self-upgrade", false, "Upgrade Kohort to the latest release and exit")
	flags.BoolVar(&selfUpgradeCheckOnly, "self-upgrade-check", false, "Report whether a newer Kohort release exists and exit")
	flags.BoolVar(&selfUpgradeAutoYes, "self-upgrade-yes", false, "Do not ask before replacing the binary")

	previous := RootCmd.PersistentPreRunE
	RootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if previous != nil {
			if err := previous(cmd, args); err != nil {
				return err
			}
		}
		if !selfUpgradeRequested && !selfUpgradeCheckOnly {
			return nil
		}

		u := upgrader{
			in:     os.Stdin,
			out:    cmd.OutOrStdout(),
			detect: selfupdate.DetectLatest,
			apply:  selfupdate.UpdateTo,
		}
		if err := u.run(selfUpgradeCheckOnly, selfUpgradeAutoYes); err != nil {
			return err
		}
		os.Exit(0)
		return nil
	}
}

// upgrader replaces the running binary with the latest GitHub release.
type upgrader struct {
	in     io.Reader
	out    io.Writer
	detect func(repo string) (*selfupdate.Release, bool, error)
	apply  func(assetURL, exe string) error
}

func (u upgrader) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(u.out, format, args...)
}

func (u upgrader) run(checkOnly, autoYes bool) error {
	current, err := currentVersion()
	if err != nil {
		return err
	}

	release, found, err := u.detect(releaseRepository)
	switch {
	case err != nil:
		return fmt.Errorf("failed to check for updates: %w", err)
	case !found:
		return errors.New("no releases found for Kohort")
	}

	if !release.Version.GT(current) {
		u.printf("Kohort v%s is up to date\n", current)
		return nil
	}
	u.printf("Kohort v%s is available (running v%s)\n", release.Version, current)
	if checkOnly {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to determine executable path: %w", err)
	}
	u.printf("  binary:   %s\n  platform: %s/%s\n", exe, runtime.GOOS, runtime.GOARCH)
	if release.AssetURL != "" {
		u.printf("  asset:    %s\n", release.AssetURL)
	}

	if !autoYes {
		ok, err := confirmUpgrade(u.in, u.out)
		if err != nil {
			return err
		}
		if !ok {
			u.printf("Upgrade cancelled\n")
			return nil
		}
	}

	if err := u.apply(release.AssetURL, exe); err != nil {
		return fmt.Errorf("self-upgrade failed: %w", err)
	}
	u.printf("Upgraded to v%s\n", release.Version)
	return nil
}

// currentVersion parses Version, tolerating a leading "v".
func currentVersion() (semver.Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(Version), "v")
	if raw == "" || raw == "dev" {
		return semver.Version{}, errNotReleaseBuild
	}
	v, err := semver.Parse(raw)
	if err != nil {
		return semver.Version{}, fmt.Errorf("invalid current version %q: %w", Version, err)
	}
	return v, nil
}

// confirmUpgrade reads a yes/no answer. An empty answer means yes.
func confirmUpgrade(in io.Reader, out io.Writer) (bool, error) {
	_, _ = fmt.Fprint(out, "Replace the current binary? [Y/n] ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && answer != "") {
		return false, fmt.Errorf("failed to read input: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
