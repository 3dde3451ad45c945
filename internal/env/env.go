package env

import (
	"os"
	"path/filepath"
)

var Daemon bool = false
var ListenPort int = 0

// 构建时通过-ldflags注入
var Version string = "dev"

// (default: %USERPROFILE%/.yukibot on Windows, $HOME/.yukibot on Linux)
var YukibotDir string = GetYukibotDir()

/**
 * Get yukibot directory path
 * @returns {string} Returns yukibot directory path
 */
func GetYukibotDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".yukibot")
}
