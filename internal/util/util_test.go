package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy\x7f"
	out := SanitizeText(in)
	require.Equal(t, "abcd\n\txy", out)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc", "invoice.pdf")
	n, err := WriteFileAtomic(path, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.EqualValues(t, 8, n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSafeJoinStripsTraversal(t *testing.T) {
	require.Equal(t, filepath.Join("/data", "passwd"), SafeJoin("/data", "../../etc/passwd"))
}

func TestSHA256Hex(t *testing.T) {
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", SHA256Hex([]byte("hello")))
}

func TestCleanFilename(t *testing.T) {
	cases := map[string]string{
		"invoice.pdf":                "invoice.pdf",
		"  scans/2024/receipt.png ": "receipt.png",
		`C:\Users\me\report.pdf`:  "report.pdf",
		"../..":                      "",
		"   ":                        "",
		"dir/":                       "",
	}
	for in, want := range cases {
		require.Equal(t, want, CleanFilename(in), in)
	}
}
