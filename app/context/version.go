package context

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// VersionInfo describes the build of the application.
type VersionInfo struct {
	Semantic string
	Commit   string
	Dirty    bool
	Go       string
}

// GetVersion returns the version information embedded in the binary by the Go
// toolchain.
func GetVersion() (*VersionInfo, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("failed reading build information")
	}

	v := &VersionInfo{Semantic: bi.Main.Version, Go: bi.GoVersion}
	if v.Semantic == "" || v.Semantic == "(devel)" {
		v.Semantic = "v0.0.0-dev"
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Commit = s.Value
		case "vcs.modified":
			v.Dirty = s.Value == "true"
		}
	}

	return v, nil
}

func (v *VersionInfo) String() string {
	var sb strings.Builder
	sb.WriteString(v.Semantic)
	if v.Commit != "" {
		commit := v.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(&sb, " (%s", commit)
		if v.Dirty {
			sb.WriteString("-dirty")
		}
		sb.WriteString(")")
	}
	if v.Go != "" {
		fmt.Fprintf(&sb, " %s", v.Go)
	}

	return sb.String()
}
