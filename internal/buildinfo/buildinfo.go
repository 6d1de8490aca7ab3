package buildinfo

import "runtime"

// Ces variables sont typiquement injectées à la compilation via -ldflags.
// Exemple :
//
//	-X github.com/drosenbaum/shiurcast/internal/buildinfo.Version=v0.0.0
//	-X github.com/drosenbaum/shiurcast/internal/buildinfo.Commit=abcdef
//	-X github.com/drosenbaum/shiurcast/internal/buildinfo.Date=2026-09-01
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"goVersion"`
}

func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
}
