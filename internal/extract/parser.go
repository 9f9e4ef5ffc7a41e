package extract

import "strings"

// BackendRef is one entry of an extractor list such as
// "pdftext|tesseract:eng+deu|vertex:gemini-1.5-flash". The part after the
// colon is a backend specific option.
type BackendRef struct {
	Raw    string
	Name   string
	Option string
}

func ParseExtractorList(raw string) []BackendRef {
	parts := strings.Split(raw, "|")
	out := make([]BackendRef, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ref := BackendRef{Raw: p}
		if strings.Contains(p, ":") {
			x := strings.SplitN(p, ":", 2)
			ref.Name = strings.ToLower(strings.TrimSpace(x[0]))
			ref.Option = strings.TrimSpace(x[1])
		} else {
			ref.Name = strings.ToLower(p)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, BackendRef{Raw: "mock", Name: "mock"})
	}
	return out
}
