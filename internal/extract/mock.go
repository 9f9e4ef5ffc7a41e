package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MockExtractor returns the file itself when it is UTF-8 text and a stable
// placeholder transcript otherwise. It supports every extension.
type MockExtractor struct{}

func NewMockExtractor() *MockExtractor { return &MockExtractor{} }

func (m *MockExtractor) Name() string { return "mock" }

func (m *MockExtractor) Supports(ext string) bool { return true }

func (m *MockExtractor) Extract(ctx context.Context, in Input) (string, error) {
	_ = ctx
	if utf8.Valid(in.Data) && !strings.ContainsRune(string(in.Data), 0) {
		return string(in.Data), nil
	}
	sum := sha256.Sum256(in.Data)
	return fmt.Sprintf("mock transcript of %s (%d bytes, %s)", in.Locator.Filename, len(in.Data), hex.EncodeToString(sum[:4])), nil
}
