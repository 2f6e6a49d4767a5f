// Package testutil writes the stand-in programs used by tests in place of
// the real node, bootstrapping and authority tools.
//
// Every tool is a small shell script. Jar tools are run through a fake java
// launcher which executes the "jar" as a script, so tests exercise the same
// command lines as a real session.
package testutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

const fakeJava = `#!/bin/sh
if [ "$1" = "-jar" ]; then
	shift
fi
jar="$1"
shift
exec sh "$jar" "$@"
`

// WriteScript writes an executable shell script at path.
func WriteScript(t testing.TB, path string, body string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}

	return path
}

// WriteFile writes a plain file at path, creating its directory.
func WriteFile(t testing.TB, path string, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

// FakeJava writes the fake java launcher into dir and returns its path.
func FakeJava(t testing.TB, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "java")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path, []byte(fakeJava), 0755); err != nil {
		t.Fatal(err)
	}

	return path
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
