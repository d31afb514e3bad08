// Package version exposes build information injected at link time, e.g.
//
//	go build -ldflags "-X github.com/FIAP-Grupo-11SOAT/download-lambda/internal/version.version=v1.2.0"
package version

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
}

func Get() Info {
	return Info{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
	}
}
