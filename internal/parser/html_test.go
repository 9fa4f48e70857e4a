package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_TextNodesBecomeLines(t *testing.T) {
	input := `<html><head><title>Public Law 118-47</title><style>p{}</style></head>
<body><pre>
[[Page 138 STAT. 460]]

DIVISION C--DEPARTMENT OF HOMELAND SECURITY APPROPRIATIONS ACT, 2024
</pre><script>var x = 1;</script><p>Federal Emergency <b>Management</b> Agency</p></body></html>`

	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(input), "Further_Consolidated.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Public Law 118-47" {
		t.Errorf("expected title from <title>, got %q", doc.Title)
	}
	if doc.Source != "Further_Consolidated.html" {
		t.Errorf("expected source to keep extension, got %q", doc.Source)
	}

	text := doc.Text()
	if strings.Contains(text, "var x") || strings.Contains(text, "p{}") {
		t.Errorf("script/style content leaked: %q", text)
	}
	if !strings.Contains(text, "\nDIVISION C--DEPARTMENT OF HOMELAND SECURITY") {
		t.Errorf("expected line-anchored division heading, got %q", text)
	}
	if !strings.Contains(text, "Federal Emergency\nManagement\nAgency") {
		t.Errorf("expected one line per text node, got %q", text)
	}
}

func TestHTMLParser_FallbackTitle(t *testing.T) {
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader("<p>hello</p>"), "bill.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "bill" {
		t.Errorf("expected title %q, got %q", "bill", doc.Title)
	}
	if len(doc.Blocks) != 1 || doc.Blocks[0] != "hello" {
		t.Errorf("unexpected blocks %q", doc.Blocks)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.html", false},
		{"a.HTM", false},
		{"a.txt", false},
		{"a.md", false},
		{"a.pdf", false},
		{"a.docx", false},
		{"a.csv", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name, false)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
		if IsSupportedExtension(tt.name) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.name)
		}
	}
}
