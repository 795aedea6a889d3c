package app

import (
	"github.com/kart-io/version"
	"github.com/spf13/pflag"
)

// unknownVersion 未通过 ldflags 注入版本时使用。
const unknownVersion = "v0.0.0-unknown"

// GetVersion returns the git version injected at build time.
func GetVersion() string {
	if v := version.Get().GitVersion; v != "" {
		return v
	}
	return unknownVersion
}

// addVersionFlags 注册 --version 标志。
func addVersionFlags(fs *pflag.FlagSet) {
	version.AddFlags(fs)
}

// printVersionIfRequested 在指定了 --version 时打印版本并退出。
func printVersionIfRequested() {
	version.PrintAndExitIfRequested()
}
