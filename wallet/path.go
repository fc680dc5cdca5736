// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package wallet

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// CleanAndExpandPath expands environment variables and a leading ~ or ~user in
// the passed path, and cleans the result. If the home directory can't be
// resolved, the path is made relative to the working directory.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}
	path = os.ExpandEnv(path)
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}
	path = path[1:]

	seps := string(os.PathSeparator)
	if runtime.GOOS == "windows" {
		seps += "/"
	}
	var userName string
	if i := strings.IndexAny(path, seps); i != -1 {
		userName, path = path[:i], path[i:]
	} else {
		userName, path = path, ""
	}

	lookup := user.Current
	if userName != "" {
		lookup = func() (*user.User, error) { return user.Lookup(userName) }
	}
	homeDir := "."
	if u, err := lookup(); err == nil && u.HomeDir != "" {
		homeDir = u.HomeDir
	}
	return filepath.Join(homeDir, path)
}
